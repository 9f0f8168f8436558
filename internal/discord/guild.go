package discord

import (
	"context"
	"fmt"
	"strings"

	"pubg-rank-bot/internal/domain"

	"github.com/bwmarrin/discordgo"
)

// GuildRoles is the role capability of a single guild backed by the Discord REST API.
type GuildRoles struct {
	session *discordgo.Session
	guildID string
}

func NewGuildRoles(session *discordgo.Session, guildID string) *GuildRoles {
	return &GuildRoles{session: session, guildID: guildID}
}

func (g *GuildRoles) roles(ctx context.Context) ([]*discordgo.Role, error) {
	roles, err := g.session.GuildRoles(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list roles of guild %s: %w", g.guildID, err)
	}
	return roles, nil
}

// MemberPermissions returns the guild-level permission bits of a member.
func (g *GuildRoles) MemberPermissions(ctx context.Context, userID string) (int64, error) {
	member, err := g.session.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to get member %s: %w", userID, err)
	}
	roles, err := g.roles(ctx)
	if err != nil {
		return 0, err
	}
	return memberPermissions(g.guildID, member.Roles, roles), nil
}

func (g *GuildRoles) CanManageRoles(ctx context.Context) (bool, error) {
	if g.session.State == nil || g.session.State.User == nil {
		return false, fmt.Errorf("session is not ready")
	}
	perms, err := g.MemberPermissions(ctx, g.session.State.User.ID)
	if err != nil {
		return false, err
	}
	return hasPermission(perms, discordgo.PermissionManageRoles), nil
}

func (g *GuildRoles) FindRoleByName(ctx context.Context, name string) (*domain.Role, error) {
	roles, err := g.roles(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if strings.EqualFold(r.Name, name) {
			role := toRole(r)
			return &role, nil
		}
	}
	return nil, nil
}

func (g *GuildRoles) ListUserRoles(ctx context.Context, userID string) ([]domain.Role, error) {
	member, err := g.session.GuildMember(g.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get member %s: %w", userID, err)
	}
	roles, err := g.roles(ctx)
	if err != nil {
		return nil, err
	}
	return memberRoles(member.Roles, roles), nil
}

func (g *GuildRoles) Grant(ctx context.Context, userID string, role domain.Role) error {
	return g.session.GuildMemberRoleAdd(g.guildID, userID, role.ID, discordgo.WithContext(ctx))
}

func (g *GuildRoles) Revoke(ctx context.Context, userID string, role domain.Role) error {
	return g.session.GuildMemberRoleRemove(g.guildID, userID, role.ID, discordgo.WithContext(ctx))
}

func (g *GuildRoles) CreateRole(ctx context.Context, name string) (*domain.Role, error) {
	created, err := g.session.GuildRoleCreate(g.guildID, &discordgo.RoleParams{Name: name}, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to create role %s: %w", name, err)
	}
	role := toRole(created)
	return &role, nil
}

func toRole(r *discordgo.Role) domain.Role {
	return domain.Role{ID: r.ID, Name: r.Name, Color: r.Color}
}

// memberRoles keeps the guild roles whose ids the member holds, in guild order.
func memberRoles(ids []string, roles []*discordgo.Role) []domain.Role {
	held := make(map[string]bool, len(ids))
	for _, id := range ids {
		held[id] = true
	}
	var out []domain.Role
	for _, r := range roles {
		if held[r.ID] {
			out = append(out, toRole(r))
		}
	}
	return out
}

// memberPermissions folds the @everyone role (id == guild id) and every held role.
func memberPermissions(guildID string, ids []string, roles []*discordgo.Role) int64 {
	held := make(map[string]bool, len(ids)+1)
	held[guildID] = true
	for _, id := range ids {
		held[id] = true
	}
	var perms int64
	for _, r := range roles {
		if held[r.ID] {
			perms |= r.Permissions
		}
	}
	return perms
}

func hasPermission(perms, want int64) bool {
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&want == want
}

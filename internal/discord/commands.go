package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pubg-rank-bot/internal/api"
	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/domain"
	"pubg-rank-bot/internal/service"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

type command struct {
	Name string
	Args []string
}

func parseCommand(prefix, content string) (command, bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return command{}, false
	}
	fields := strings.Fields(strings.TrimPrefix(content, prefix))
	if len(fields) == 0 {
		return command{}, false
	}
	return command{Name: strings.ToLower(fields[0]), Args: fields[1:]}, true
}

type request struct {
	msg   *discordgo.Message
	args  []string
	roles guildRoles
	log   zerolog.Logger
}

type handler struct {
	admin bool
	// dropTrigger deletes the invoking message before running.
	dropTrigger bool
	// long commands run without CommandTimeout and stop only on shutdown.
	long bool
	run  func(ctx context.Context, req request) error
}

func (b *Bot) commandTable() map[string]handler {
	return map[string]handler{
		"register":    {dropTrigger: true, run: b.register},
		"update":      {dropTrigger: true, run: b.update},
		"update_user": {admin: true, dropTrigger: true, run: b.updateUser},
		"update_all":  {admin: true, long: true, run: b.updateAll},
		"rank":        {run: b.rank},
		"create":      {admin: true, run: b.create},
		"intro":       {admin: true, dropTrigger: true, run: b.intro},
	}
}

func (b *Bot) handle(msg *discordgo.Message, cmd command) {
	h, ok := b.commands[cmd.Name]
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, constants.CommandTimeout)
	defer cancel()
	runCtx := ctx
	if h.long {
		var stop context.CancelFunc
		runCtx, stop = context.WithCancel(b.ctx)
		defer stop()
	}

	log := b.logger.With().
		Str("command", cmd.Name).
		Str("user_id", msg.Author.ID).
		Str("guild_id", msg.GuildID).
		Logger()
	req := request{msg: msg, args: cmd.Args, roles: b.guilds(msg.GuildID), log: log}

	if h.admin {
		perms, err := req.roles.MemberPermissions(ctx, msg.Author.ID)
		if err != nil {
			log.Error().Err(err).Msg("failed to check member permissions")
			b.notice(msg.ChannelID, "`"+userMessage(err)+"`", constants.ErrorNoticeTTL)
			return
		}
		if !hasPermission(perms, discordgo.PermissionAdministrator) {
			log.Info().Msg("admin command refused")
			b.notice(msg.ChannelID, "`This command is for admins only`", constants.ErrorNoticeTTL)
			return
		}
	}

	if h.dropTrigger {
		b.delete(msg)
	}

	log.Debug().Strs("args", cmd.Args).Msg("running command")
	if err := h.run(runCtx, req); err != nil {
		log.Warn().Err(err).Msg("command failed")
		b.notice(msg.ChannelID, b.failureText(err), constants.ErrorNoticeTTL)
	}
}

// accountError carries the linked account of a failed sync so the reply can point at its profile.
type accountError struct {
	account string
	err     error
}

func (e *accountError) Error() string { return e.err.Error() }

func (e *accountError) Unwrap() error { return e.err }

// withAccount attaches the linked account of userID to a parse failure.
func (b *Bot) withAccount(ctx context.Context, userID string, err error) error {
	if !errors.Is(err, domain.ErrParseFailed) {
		return err
	}
	rec, _, lookupErr := b.sync.Lookup(ctx, userID)
	if lookupErr != nil {
		return err
	}
	return &accountError{account: rec.Account, err: err}
}

func (b *Bot) failureText(err error) string {
	text := userMessage(err)
	var ae *accountError
	if errors.Is(err, domain.ErrParseFailed) && errors.As(err, &ae) && b.links != nil {
		text += ", visit " + b.links.ProfileURL(ae.account) + " to refresh it"
	}
	return "`" + text + "`"
}

func (b *Bot) register(ctx context.Context, req request) error {
	if len(req.args) == 0 {
		b.notice(req.msg.ChannelID, fmt.Sprintf("`Usage: %sregister <account> [region]`", b.prefix), constants.ErrorNoticeTTL)
		return nil
	}
	account := req.args[0]
	var regions []string
	if len(req.args) > 1 {
		regions = []string{api.NormalizeRegion(strings.ToLower(req.args[1]))}
	}

	author := req.msg.Author
	pending := b.send(req.msg.ChannelID, fmt.Sprintf("`Registering account %s to %s`", account, displayName(author)))
	defer b.delete(pending)

	res, err := b.sync.Register(ctx, req.roles, author.ID, account, regions)
	if err != nil {
		return &accountError{account: account, err: err}
	}
	b.report(req.msg.ChannelID, author, res)
	return nil
}

func (b *Bot) update(ctx context.Context, req request) error {
	res, err := b.sync.Sync(ctx, req.roles, req.msg.Author.ID, nil)
	if err != nil {
		return b.withAccount(ctx, req.msg.Author.ID, err)
	}
	b.report(req.msg.ChannelID, req.msg.Author, res)
	return nil
}

func (b *Bot) updateUser(ctx context.Context, req request) error {
	target := mentionedOrAuthor(req.msg)
	res, err := b.sync.Sync(ctx, req.roles, target.ID, nil)
	if err != nil {
		return b.withAccount(ctx, target.ID, err)
	}
	b.report(req.msg.ChannelID, target, res)
	return nil
}

func (b *Bot) updateAll(ctx context.Context, req request) error {
	report, err := b.sync.SyncAll(ctx, req.roles)
	if report == nil {
		return err
	}
	b.send(req.msg.ChannelID, batchSummary(report, err))
	return nil
}

func (b *Bot) rank(ctx context.Context, req request) error {
	target := mentionedOrAuthor(req.msg)
	rec, _, err := b.sync.Lookup(ctx, target.ID)
	if err != nil {
		return err
	}

	var held *domain.Role
	roles, err := req.roles.ListUserRoles(ctx, target.ID)
	if err != nil {
		req.log.Warn().Err(err).Msg("failed to list member roles")
	}
	for _, r := range roles {
		if isTierName(b.sync.TierNames(), r.Name) {
			role := r
			held = &role
			break
		}
	}

	b.sendEmbed(req.msg.ChannelID, rankEmbed(rankView{
		Member:    displayName(target),
		Requester: req.msg.Author,
		Record:    rec,
		Role:      held,
		Prefix:    b.prefix,
	}))
	return nil
}

// create provisions every tier role the guild is missing.
func (b *Bot) create(ctx context.Context, req request) error {
	created := 0
	for _, name := range b.sync.TierNames() {
		existing, err := req.roles.FindRoleByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		if _, err := req.roles.CreateRole(ctx, name); err != nil {
			return err
		}
		req.log.Info().Str("role", name).Msg("tier role created")
		created++
	}
	b.send(req.msg.ChannelID, fmt.Sprintf("Done, %d tier roles created", created))
	return nil
}

func (b *Bot) intro(_ context.Context, req request) error {
	b.sendEmbed(req.msg.ChannelID, introEmbed(b.prefix))
	return nil
}

// report posts the outcome of a single sync as a transient notice.
func (b *Bot) report(channelID string, member *discordgo.User, res *service.SyncResult) {
	switch {
	case res.RoleErr != nil:
		b.notice(channelID, "`"+userMessage(res.RoleErr)+"`", constants.ErrorNoticeTTL)
	case res.Tier == nil:
		b.notice(channelID, fmt.Sprintf("`Stats updated, %s has no ranked games yet`", displayName(member)), constants.NoticeTTL)
	default:
		b.notice(channelID, fmt.Sprintf("`Role %s given to %s`", res.Tier.Name, displayName(member)), constants.NoticeTTL)
	}
}

func batchSummary(report *service.BatchReport, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Synced %d of %d players", report.Synced, report.Total)
	if report.Aborted && err != nil {
		fmt.Fprintf(&sb, ", stopped early: %s", userMessage(err))
	}
	for _, f := range report.Failed {
		fmt.Fprintf(&sb, "\n<@%s> (%s): %s", f.UserID, f.Account, userMessage(f.Err))
	}
	for _, f := range report.RoleFailures {
		fmt.Fprintf(&sb, "\n<@%s> (%s): %s", f.UserID, f.Account, userMessage(f.Err))
	}
	return sb.String()
}

func mentionedOrAuthor(msg *discordgo.Message) *discordgo.User {
	for _, u := range msg.Mentions {
		if u != nil {
			return u
		}
	}
	return msg.Author
}

func displayName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func isTierName(names []string, name string) bool {
	for _, n := range names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

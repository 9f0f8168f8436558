package service

import (
	"context"
	"fmt"
	"strings"

	"pubg-rank-bot/internal/domain"
	"pubg-rank-bot/internal/tier"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// RoleReconciler keeps a member on at most one tier role.
type RoleReconciler struct {
	tierNames []string
	logger    zerolog.Logger
}

func NewRoleReconciler(resolver *tier.Resolver, logger zerolog.Logger) *RoleReconciler {
	return &RoleReconciler{tierNames: resolver.Names(), logger: logger}
}

func (r *RoleReconciler) IsTierRole(name string) bool {
	for _, n := range r.tierNames {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// Reconcile strips every tier role the user holds and grants the target tier role.
// A nil target leaves the user without any tier role. When the target role does not
// exist the strip has already happened and ErrRoleNotFound is returned.
func (r *RoleReconciler) Reconcile(ctx context.Context, roles RoleManager, userID string, target *domain.Tier) error {
	ok, err := roles.CanManageRoles(ctx)
	if err != nil {
		return fmt.Errorf("failed to check role permissions: %w", err)
	}
	if !ok {
		return domain.ErrInsufficientPermission
	}

	held, err := roles.ListUserRoles(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list roles of %s: %w", userID, err)
	}

	targetHeld := false
	g, gCtx := errgroup.WithContext(ctx)
	for _, role := range held {
		if !r.IsTierRole(role.Name) {
			continue
		}
		if target != nil && !targetHeld && strings.EqualFold(role.Name, target.Name) {
			targetHeld = true
			continue
		}
		g.Go(func() error {
			r.logger.Debug().Str("user_id", userID).Str("role", role.Name).Msg("revoking tier role")
			return roles.Revoke(gCtx, userID, role)
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to revoke tier roles")
		return fmt.Errorf("failed to revoke tier roles: %w", err)
	}

	if target == nil || targetHeld {
		return nil
	}

	role, err := roles.FindRoleByName(ctx, target.Name)
	if err != nil {
		return fmt.Errorf("failed to look up role %s: %w", target.Name, err)
	}
	if role == nil {
		r.logger.Warn().Str("user_id", userID).Str("role", target.Name).Msg("tier role missing from guild")
		return fmt.Errorf("%w: %s", domain.ErrRoleNotFound, target.Name)
	}

	if err := roles.Grant(ctx, userID, *role); err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Str("role", role.Name).Msg("failed to grant tier role")
		return fmt.Errorf("failed to grant role %s: %w", role.Name, err)
	}

	r.logger.Info().Str("user_id", userID).Str("role", role.Name).Msg("tier role granted")
	return nil
}

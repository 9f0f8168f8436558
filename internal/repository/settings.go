package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

const tierRolesKey = "tier_roles"

type SettingsRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSettingsRepository(sqlDB *sql.DB, logger zerolog.Logger) *SettingsRepository {
	return &SettingsRepository{db: sqlDB, logger: logger}
}

// TierRoles returns the stored tier role names, lowest tier first. The document
// keeps them highest first.
func (r *SettingsRepository) TierRoles(ctx context.Context) ([]string, bool, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, tierRolesKey).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, false, fmt.Errorf("failed to decode tier roles: %w", err)
	}
	slices.Reverse(names)
	return names, true, nil
}

func (r *SettingsRepository) SetTierRoles(ctx context.Context, names []string) error {
	stored := slices.Clone(names)
	slices.Reverse(stored)
	raw, err := json.Marshal(stored)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		tierRolesKey, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store tier roles: %w", err)
	}
	return nil
}

// EnsureTierRoles returns the stored tier roles, seeding them with defaults on first run.
func (r *SettingsRepository) EnsureTierRoles(ctx context.Context, defaults []string) ([]string, error) {
	names, ok, err := r.TierRoles(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return names, nil
	}

	if err := r.SetTierRoles(ctx, defaults); err != nil {
		return nil, err
	}
	r.logger.Info().Strs("tier_roles", defaults).Msg("tier roles seeded")
	return slices.Clone(defaults), nil
}

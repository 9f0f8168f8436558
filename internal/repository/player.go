package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pubg-rank-bot/internal/domain"

	"github.com/rs/zerolog"
)

// PlayerRepository is the record store: Discord user id -> linked profile and last snapshot.
type PlayerRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewPlayerRepository(sqlDB *sql.DB, logger zerolog.Logger) *PlayerRepository {
	return &PlayerRepository{
		db:     sqlDB,
		logger: logger,
	}
}

const playerColumns = `user_id, account, stats, avatar, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.PlayerRecord, error) {
	var (
		rec   domain.PlayerRecord
		stats sql.NullString
	)
	if err := row.Scan(&rec.UserID, &rec.Account, &stats, &rec.Avatar, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if stats.Valid && stats.String != "" {
		var snapshot domain.StatsSnapshot
		if err := json.Unmarshal([]byte(stats.String), &snapshot); err != nil {
			return nil, fmt.Errorf("failed to decode stats for %s: %w", rec.UserID, err)
		}
		snapshot.Normalize()
		rec.Stats = &snapshot
	}
	return &rec, nil
}

func (r *PlayerRepository) Get(ctx context.Context, userID string) (*domain.PlayerRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE user_id = ?`, userID)
	rec, err := scanPlayer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUnregisteredAccount)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to get player")
		return nil, err
	}
	return rec, nil
}

// List returns every registered player in registration order.
func (r *PlayerRepository) List(ctx context.Context) ([]domain.PlayerRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY created_at, user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PlayerRecord
	for rows.Next() {
		rec, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rec)
	}
	return result, rows.Err()
}

func (r *PlayerRepository) Load(ctx context.Context) (map[string]domain.PlayerRecord, error) {
	players, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[string]domain.PlayerRecord, len(players))
	for _, p := range players {
		result[p.UserID] = p
	}
	r.logger.Debug().Int("count", len(result)).Msg("players loaded")
	return result, nil
}

// Replace writes the whole record in one statement, keeping the original creation time.
func (r *PlayerRepository) Replace(ctx context.Context, userID string, rec *domain.PlayerRecord) error {
	var stats sql.NullString
	if rec.Stats != nil {
		raw, err := json.Marshal(rec.Stats)
		if err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
		stats = sql.NullString{String: string(raw), Valid: true}
	}

	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO players (user_id, account, stats, avatar, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			account = excluded.account,
			stats = excluded.stats,
			avatar = excluded.avatar,
			updated_at = excluded.updated_at`,
		userID, rec.Account, stats, rec.Avatar, createdAt, now)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to replace player")
		return fmt.Errorf("failed to replace player %s: %w", userID, err)
	}

	r.logger.Debug().Str("user_id", userID).Str("account", rec.Account).Msg("player replaced")
	return nil
}

// Persist flushes the write-ahead log into the database file.
func (r *PlayerRepository) Persist(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		r.logger.Warn().Err(err).Msg("failed to checkpoint database")
		return fmt.Errorf("failed to persist players: %w", err)
	}
	return nil
}

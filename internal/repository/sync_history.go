package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pubg-rank-bot/internal/domain"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

type SyncHistoryRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewSyncHistoryRepository(sqlDB *sql.DB, logger zerolog.Logger) *SyncHistoryRepository {
	return &SyncHistoryRepository{
		db:     sqlDB,
		logger: logger,
	}
}

func (r *SyncHistoryRepository) Insert(ctx context.Context, record domain.SyncRecord) (string, error) {
	id := record.ID
	if id == "" {
		var err error
		id, err = gonanoid.New()
		if err != nil {
			return "", fmt.Errorf("failed to generate nanoid: %w", err)
		}
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_history (id, user_id, account, max_rating, tier_name, role_error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, record.UserID, record.Account, record.MaxRating, record.TierName, record.RoleError, createdAt)
	if err != nil {
		return "", fmt.Errorf("failed to insert sync history: %w", err)
	}
	return id, nil
}

func (r *SyncHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]domain.SyncRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, account, max_rating, tier_name, role_error, created_at
		FROM sync_history
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SyncRecord
	for rows.Next() {
		var rec domain.SyncRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Account, &rec.MaxRating, &rec.TierName, &rec.RoleError, &rec.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

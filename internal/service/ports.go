package service

import (
	"context"

	"pubg-rank-bot/internal/domain"
)

type ProfileFetcher interface {
	Fetch(ctx context.Context, account string, regions []string) ([]byte, error)
}

type StatsParser interface {
	Parse(raw []byte) (*domain.StatsSnapshot, string, error)
}

type RecordStore interface {
	Get(ctx context.Context, userID string) (*domain.PlayerRecord, error)
	List(ctx context.Context) ([]domain.PlayerRecord, error)
	Load(ctx context.Context) (map[string]domain.PlayerRecord, error)
	Replace(ctx context.Context, userID string, rec *domain.PlayerRecord) error
	Persist(ctx context.Context) error
}

type HistoryStore interface {
	Insert(ctx context.Context, record domain.SyncRecord) (string, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.SyncRecord, error)
}

// RoleManager is the role capability of one guild on the chat platform.
type RoleManager interface {
	CanManageRoles(ctx context.Context) (bool, error)
	FindRoleByName(ctx context.Context, name string) (*domain.Role, error)
	ListUserRoles(ctx context.Context, userID string) ([]domain.Role, error)
	Grant(ctx context.Context, userID string, role domain.Role) error
	Revoke(ctx context.Context, userID string, role domain.Role) error
}

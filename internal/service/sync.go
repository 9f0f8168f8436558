package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pubg-rank-bot/internal/config"
	"pubg-rank-bot/internal/constants"
	"pubg-rank-bot/internal/domain"
	"pubg-rank-bot/internal/tier"

	"github.com/rs/zerolog"
)

// DefaultRegisterRegions are refreshed when a player registers without naming a region.
var DefaultRegisterRegions = []string{"na", "sa"}

type SyncResult struct {
	Record    *domain.PlayerRecord
	MaxRating int
	Tier      *domain.Tier
	// RoleErr is a *domain.PartialFailure when stats were stored but roles were not updated.
	RoleErr error
}

type BatchFailure struct {
	UserID  string
	Account string
	Err     error
}

type BatchReport struct {
	Total        int
	Synced       int
	Failed       []BatchFailure
	RoleFailures []BatchFailure
	Aborted      bool
}

type SyncService struct {
	fetcher      ProfileFetcher
	parser       StatsParser
	players      RecordStore
	history      HistoryStore
	resolver     *tier.Resolver
	reconciler   *RoleReconciler
	pacing       time.Duration
	abortOnError bool
	locks        *userLocks
	sleep        func(ctx context.Context, d time.Duration) error
	logger       zerolog.Logger
}

func NewSyncService(
	fetcher ProfileFetcher,
	parser StatsParser,
	players RecordStore,
	history HistoryStore,
	resolver *tier.Resolver,
	reconciler *RoleReconciler,
	cfg *config.Config,
	logger zerolog.Logger,
) *SyncService {
	return &SyncService{
		fetcher:      fetcher,
		parser:       parser,
		players:      players,
		history:      history,
		resolver:     resolver,
		reconciler:   reconciler,
		pacing:       cfg.SyncPacing,
		abortOnError: cfg.AbortOnError,
		locks:        newUserLocks(),
		sleep:        sleepContext,
		logger:       logger,
	}
}

// Register links account to the user, dropping any previous snapshot, and syncs it.
func (s *SyncService) Register(ctx context.Context, roles RoleManager, userID, account string, regions []string) (*SyncResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	if len(regions) == 0 {
		regions = DefaultRegisterRegions
	}

	s.logger.Info().Str("user_id", userID).Str("account", account).Strs("regions", regions).Msg("registering player")

	dbCtx, cancel := context.WithTimeout(ctx, constants.DatabaseTimeout)
	defer cancel()
	if err := s.players.Replace(dbCtx, userID, &domain.PlayerRecord{UserID: userID, Account: account}); err != nil {
		return nil, err
	}
	if err := s.players.Persist(dbCtx); err != nil {
		s.logger.Warn().Err(err).Str("user_id", userID).Msg("failed to persist registration")
	}

	return s.sync(ctx, roles, userID, regions)
}

// Sync refreshes the user's profile, stores the new snapshot and reconciles the tier
// role. Fetch and parse failures leave the stored record untouched. A role failure
// does not fail the sync, it is reported in SyncResult.RoleErr. roles may be nil to
// skip the role step.
func (s *SyncService) Sync(ctx context.Context, roles RoleManager, userID string, regions []string) (*SyncResult, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	return s.sync(ctx, roles, userID, regions)
}

func (s *SyncService) sync(ctx context.Context, roles RoleManager, userID string, regions []string) (*SyncResult, error) {
	ctx, cancel := context.WithTimeout(ctx, constants.RequestTimeout)
	defer cancel()

	log := s.logger.With().Str("user_id", userID).Logger()

	rec, err := s.players.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrUnregisteredAccount) {
			log.Error().Err(err).Msg("failed to load player")
		}
		return nil, err
	}

	log.Debug().Str("account", rec.Account).Msg("fetching profile")
	raw, err := s.fetcher.Fetch(ctx, rec.Account, regions)
	if err != nil {
		log.Warn().Err(err).Str("account", rec.Account).Msg("profile fetch failed")
		return nil, err
	}

	snapshot, avatar, err := s.parser.Parse(raw)
	if err != nil {
		log.Warn().Err(err).Str("account", rec.Account).Msg("profile parse failed")
		return nil, err
	}

	updated := *rec
	updated.Stats = snapshot
	updated.Avatar = avatar
	if err := s.players.Replace(ctx, userID, &updated); err != nil {
		return nil, fmt.Errorf("failed to store stats: %w", err)
	}
	if err := s.players.Persist(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to persist stats")
	}

	maxRating := tier.MaxRating(snapshot)
	target := s.resolver.Resolve(maxRating)
	result := &SyncResult{Record: &updated, MaxRating: maxRating, Tier: target}

	if roles != nil {
		if err := s.reconciler.Reconcile(ctx, roles, userID, target); err != nil {
			result.RoleErr = &domain.PartialFailure{Err: err}
		}
	}

	s.recordHistory(ctx, result)

	log.Info().
		Str("account", rec.Account).
		Int("max_rating", maxRating).
		Str("tier", tierName(target)).
		AnErr("role_error", result.RoleErr).
		Msg("player synced")
	return result, nil
}

func (s *SyncService) recordHistory(ctx context.Context, result *SyncResult) {
	entry := domain.SyncRecord{
		UserID:    result.Record.UserID,
		Account:   result.Record.Account,
		MaxRating: result.MaxRating,
		TierName:  tierName(result.Tier),
		CreatedAt: result.Record.Stats.UpdatedAt,
	}
	if result.RoleErr != nil {
		entry.RoleError = result.RoleErr.Error()
	}
	if _, err := s.history.Insert(ctx, entry); err != nil {
		s.logger.Warn().Err(err).Str("user_id", entry.UserID).Msg("failed to record sync history")
	}
}

// SyncAll syncs every registered player one after another, pausing between players.
// Failures are collected in the report unless abort-on-error is configured, in which
// case the first failure stops the batch.
func (s *SyncService) SyncAll(ctx context.Context, roles RoleManager) (*BatchReport, error) {
	players, err := s.players.List(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list players")
		return nil, err
	}

	report := &BatchReport{Total: len(players)}
	s.logger.Info().Int("players", report.Total).Msg("batch sync started")

	for i, p := range players {
		if i > 0 {
			if err := s.sleep(ctx, s.pacing); err != nil {
				report.Aborted = true
				return report, err
			}
		}

		res, err := s.Sync(ctx, roles, p.UserID, nil)
		if err != nil {
			report.Failed = append(report.Failed, BatchFailure{UserID: p.UserID, Account: p.Account, Err: err})
			if s.abortOnError {
				report.Aborted = true
				s.logger.Warn().Err(err).Str("user_id", p.UserID).Msg("batch sync aborted")
				return report, err
			}
			continue
		}

		report.Synced++
		if res.RoleErr != nil {
			report.RoleFailures = append(report.RoleFailures, BatchFailure{UserID: p.UserID, Account: p.Account, Err: res.RoleErr})
		}
	}

	s.logger.Info().
		Int("players", report.Total).
		Int("synced", report.Synced).
		Int("failed", len(report.Failed)).
		Int("role_failures", len(report.RoleFailures)).
		Msg("batch sync finished")
	return report, nil
}

// Lookup returns the stored record and the tier its snapshot resolves to.
func (s *SyncService) Lookup(ctx context.Context, userID string) (*domain.PlayerRecord, *domain.Tier, error) {
	rec, err := s.players.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return rec, s.resolver.Resolve(tier.MaxRating(rec.Stats)), nil
}

func (s *SyncService) Registered(ctx context.Context) (map[string]domain.PlayerRecord, error) {
	return s.players.Load(ctx)
}

func (s *SyncService) History(ctx context.Context, userID string, limit int) ([]domain.SyncRecord, error) {
	return s.history.ListByUser(ctx, userID, limit)
}

func (s *SyncService) TierNames() []string {
	return s.resolver.Names()
}

func tierName(t *domain.Tier) string {
	if t == nil {
		return ""
	}
	return t.Name
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// userLocks serialises syncs per user. Entries are dropped once no caller holds or waits on them.
type userLocks struct {
	mu    sync.Mutex
	locks map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[string]*userLock)}
}

func (l *userLocks) lock(userID string) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

package service

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"pubg-rank-bot/internal/domain"
)

type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string][]byte
	errs    map[string]error
	calls   int
	regions [][]string
}

func (f *fakeFetcher) Fetch(_ context.Context, account string, regions []string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.regions = append(f.regions, regions)
	if err := f.errs[account]; err != nil {
		return nil, err
	}
	page, ok := f.pages[account]
	if !ok {
		return nil, fmt.Errorf("%w: no page for %s", domain.ErrFetchFailed, account)
	}
	return page, nil
}

type memStore struct {
	mu       sync.Mutex
	records  map[string]domain.PlayerRecord
	order    []string
	persists int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]domain.PlayerRecord)}
}

func (m *memStore) Get(_ context.Context, userID string) (*domain.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrUnregisteredAccount)
	}
	return &rec, nil
}

func (m *memStore) List(_ context.Context) ([]domain.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PlayerRecord
	for _, id := range m.order {
		out = append(out, m.records[id])
	}
	return out, nil
}

func (m *memStore) Load(context.Context) (map[string]domain.PlayerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyRecords(m.records), nil
}

func copyRecords(in map[string]domain.PlayerRecord) map[string]domain.PlayerRecord {
	out := make(map[string]domain.PlayerRecord, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memStore) Replace(_ context.Context, userID string, rec *domain.PlayerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[userID]; !ok {
		m.order = append(m.order, userID)
	}
	stored := *rec
	stored.UserID = userID
	m.records[userID] = stored
	return nil
}

func (m *memStore) Persist(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persists++
	return nil
}

type memHistory struct {
	mu      sync.Mutex
	records []domain.SyncRecord
}

func (h *memHistory) Insert(_ context.Context, record domain.SyncRecord) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	record.ID = fmt.Sprintf("h%d", len(h.records)+1)
	h.records = append(h.records, record)
	return record.ID, nil
}

func (h *memHistory) ListByUser(_ context.Context, userID string, limit int) ([]domain.SyncRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.SyncRecord
	for i := len(h.records) - 1; i >= 0 && len(out) < limit; i-- {
		if h.records[i].UserID == userID {
			out = append(out, h.records[i])
		}
	}
	return out, nil
}

// fakeGuild keeps role membership in memory.
type fakeGuild struct {
	mu        sync.Mutex
	roles     []domain.Role
	members   map[string]map[string]bool
	canManage bool
	grants    int
	revokes   int
}

func newFakeGuild(names ...string) *fakeGuild {
	g := &fakeGuild{members: make(map[string]map[string]bool), canManage: true}
	for i, n := range names {
		g.roles = append(g.roles, domain.Role{ID: fmt.Sprintf("r%d", i), Name: n})
	}
	return g
}

func (g *fakeGuild) give(userID, roleName string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.roles {
		if r.Name == roleName {
			if g.members[userID] == nil {
				g.members[userID] = make(map[string]bool)
			}
			g.members[userID][r.ID] = true
		}
	}
}

func (g *fakeGuild) held(userID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var names []string
	for _, r := range g.roles {
		if g.members[userID][r.ID] {
			names = append(names, r.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (g *fakeGuild) CanManageRoles(context.Context) (bool, error) {
	return g.canManage, nil
}

func (g *fakeGuild) FindRoleByName(_ context.Context, name string) (*domain.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range g.roles {
		if strings.EqualFold(r.Name, name) {
			role := r
			return &role, nil
		}
	}
	return nil, nil
}

func (g *fakeGuild) ListUserRoles(_ context.Context, userID string) ([]domain.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []domain.Role
	for _, r := range g.roles {
		if g.members[userID][r.ID] {
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *fakeGuild) Grant(_ context.Context, userID string, role domain.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !slices.ContainsFunc(g.roles, func(r domain.Role) bool { return r.ID == role.ID }) {
		return fmt.Errorf("unknown role %s", role.ID)
	}
	if g.members[userID] == nil {
		g.members[userID] = make(map[string]bool)
	}
	g.members[userID][role.ID] = true
	g.grants++
	return nil
}

func (g *fakeGuild) Revoke(_ context.Context, userID string, role domain.Role) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.members[userID], role.ID)
	g.revokes++
	return nil
}

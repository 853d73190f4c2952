package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/campustransit/transit-server/internal/apperrors"
	"github.com/campustransit/transit-server/internal/models"
)

// Memory is an in-process implementation of all three store interfaces,
// used by the test suite and for development without a database. A single
// mutex serializes report updates, which satisfies the atomic
// read-modify-write contract trivially.
type Memory struct {
	mu      sync.RWMutex
	seq     int64
	reports map[uuid.UUID]*models.Report
	users   map[uuid.UUID]*models.User
	routes  map[string]*models.BusRoute
	buses   map[string]*models.Bus
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		reports: make(map[uuid.UUID]*models.Report),
		users:   make(map[uuid.UUID]*models.User),
		routes:  make(map[string]*models.BusRoute),
		buses:   make(map[string]*models.Bus),
	}
}

func cloneReport(r *models.Report) *models.Report {
	c := *r
	c.Attachments = append([]models.AttachmentRef(nil), r.Attachments...)
	c.Conversation = append([]models.ConversationEntry(nil), r.Conversation...)
	if r.Details != nil {
		d := *r.Details
		c.Details = &d
	}
	if r.Resolution != nil {
		res := *r.Resolution
		c.Resolution = &res
	}
	return &c
}

func (m *Memory) Insert(ctx context.Context, r *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.Seq = m.seq
	m.reports[r.ID] = cloneReport(r)
	return nil
}

func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return cloneReport(r), nil
}

func (m *Memory) Update(ctx context.Context, id uuid.UUID, fn Mutator) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	next := cloneReport(r)
	if err := fn(next); err != nil {
		return nil, err
	}
	m.reports[id] = next
	return cloneReport(next), nil
}

func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.reports, id)
	return nil
}

func (m *Memory) List(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Report
	for _, r := range m.reports {
		if f.Kind != "" && r.Kind != f.Kind {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.Route != "" && r.Route != f.Route {
			continue
		}
		if f.AuthorID != uuid.Nil && r.AuthorID != f.AuthorID {
			continue
		}
		out = append(out, *cloneReport(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SubmittedOn.Equal(out[j].SubmittedOn) {
			return out[i].SubmittedOn.After(out[j].SubmittedOn)
		}
		return out[i].Seq < out[j].Seq
	})
	return out, nil
}

func (m *Memory) InsertUser(ctx context.Context, u *models.User) error {
	return m.insertUser(u)
}

func (m *Memory) insertUser(u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return apperrors.ErrDuplicateEmail
		}
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *Memory) ListUsers(ctx context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *Memory) UpdateUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return apperrors.ErrNotFound
	}
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *Memory) DeleteUser(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *Memory) Routes(ctx context.Context) ([]models.BusRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.BusRoute, 0, len(m.routes))
	for _, r := range m.routes {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *Memory) GetRoute(ctx context.Context, name string) (*models.BusRoute, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.routes[name]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	c := *r
	return &c, nil
}

func (m *Memory) UpsertRoute(ctx context.Context, r *models.BusRoute) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *r
	m.routes[r.Name] = &c
	return nil
}

func (m *Memory) Buses(ctx context.Context) ([]models.Bus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Bus, 0, len(m.buses))
	for _, b := range m.buses {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BusNo < out[j].BusNo })
	return out, nil
}

func (m *Memory) UpsertBus(ctx context.Context, b *models.Bus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *b
	m.buses[b.BusNo] = &c
	return nil
}

func (m *Memory) CountRoutes(ctx context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.routes)), nil
}

// MemoryUsers adapts Memory to the UserStore interface.
type MemoryUsers struct{ *Memory }

func (m MemoryUsers) Insert(ctx context.Context, u *models.User) error {
	return m.Memory.InsertUser(ctx, u)
}
func (m MemoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return m.Memory.GetUserByID(ctx, id)
}
func (m MemoryUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.Memory.GetUserByEmail(ctx, email)
}
func (m MemoryUsers) List(ctx context.Context) ([]models.User, error) {
	return m.Memory.ListUsers(ctx)
}
func (m MemoryUsers) Update(ctx context.Context, u *models.User) error {
	return m.Memory.UpdateUser(ctx, u)
}
func (m MemoryUsers) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Memory.DeleteUser(ctx, id)
}

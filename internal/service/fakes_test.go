package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/iliyamo/maallem-marketplace/internal/model"
	"github.com/iliyamo/maallem-marketplace/internal/repository"
)

// memStore is an in-memory RequestStore.  TransitionStatus evaluates its
// guard and write under one lock, the way the SQL store does it in one
// statement.
type memStore struct {
	mu     sync.Mutex
	nextID uint64
	reqs   map[uint64]*model.ServiceRequest
	users  map[uint64]model.User
}

func newMemStore(users ...model.User) *memStore {
	s := &memStore{reqs: map[uint64]*model.ServiceRequest{}, users: map[uint64]model.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memStore) Create(_ context.Context, req *model.ServiceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	req.ID = s.nextID
	req.Status = model.StatusPending
	cp := *req
	s.reqs[req.ID] = &cp
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uint64) (*model.ServiceRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reqs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *memStore) sorted(match func(*model.ServiceRequest) bool) []*model.ServiceRequest {
	var out []*model.ServiceRequest
	for _, r := range s.reqs {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *memStore) ListByProvider(_ context.Context, providerID uint64) ([]repository.ProviderRequestView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.ProviderRequestView, 0)
	for _, r := range s.sorted(func(r *model.ServiceRequest) bool { return r.ProviderID == providerID }) {
		u := s.users[r.RequesterID]
		out = append(out, repository.ProviderRequestView{
			ID: r.ID, Description: r.Description, Address: r.Address, Status: r.Status,
			CreatedAt: r.CreatedAt, UserName: u.FullName, UserEmail: u.Email,
		})
	}
	return out, nil
}

func (s *memStore) ListByUser(_ context.Context, userID uint64) ([]repository.UserRequestView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.UserRequestView, 0)
	for _, r := range s.sorted(func(r *model.ServiceRequest) bool { return r.RequesterID == userID }) {
		out = append(out, repository.UserRequestView{
			ID: r.ID, Description: r.Description, Address: r.Address, Status: r.Status,
			CreatedAt: r.CreatedAt, ProviderName: s.users[r.ProviderID].FullName,
		})
	}
	return out, nil
}

func (s *memStore) TransitionStatus(_ context.Context, requestID, providerID uint64, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reqs[requestID]
	if !ok || r.ProviderID != providerID || !model.CanTransition(r.Status, status) {
		return repository.ErrNoRowsAffected
	}
	r.Status = status
	return nil
}

// memGateway answers UserExists from the store's users.
type memGateway struct {
	store *memStore
	err   error
}

func (g memGateway) UserExists(_ context.Context, id uint64, role model.Role) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	u, ok := g.store.users[id]
	return ok && u.Role == role, nil
}

func (g memGateway) GetProviderProfile(context.Context, uint64) (*model.ProviderProfile, error) {
	return nil, nil
}

type published struct {
	key string
	v   any
}

// recordingPublisher keeps every event; fail makes each publish error.
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	fail   bool
}

func (p *recordingPublisher) PublishJSON(_ context.Context, key string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	p.events = append(p.events, published{key: key, v: v})
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.key)
	}
	return out
}

// memImages is an ImageStore kept in memory.  onRelease, when set, runs
// before a release is recorded.
type memImages struct {
	mu         sync.Mutex
	saved      map[string]string
	released   []string
	releaseErr error
	onRelease  func(name string)
}

func newMemImages() *memImages { return &memImages{saved: map[string]string{}} }

func (m *memImages) Save(original string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	name := "stored_" + strings.ToLower(original)
	m.saved[name] = string(b)
	return name, nil
}

func (m *memImages) Base64(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[name], nil
}

func (m *memImages) Release(name string) error {
	if m.onRelease != nil {
		m.onRelease(name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.releaseErr != nil {
		return m.releaseErr
	}
	m.released = append(m.released, name)
	delete(m.saved, name)
	return nil
}

// countingInvalidator records cache invalidations.  onInvalidate, when set,
// runs before the call is counted.
type countingInvalidator struct {
	mu           sync.Mutex
	calls        int
	err          error
	onInvalidate func()
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	if c.onInvalidate != nil {
		c.onInvalidate()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

func (c *countingInvalidator) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

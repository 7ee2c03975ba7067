package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"birthday-sync-service/internal/calendar"
	"birthday-sync-service/internal/store"
)

type fakeClock struct {
	now time.Time
}

func (c fakeClock) Now() time.Time { return c.now }

// --- provider ---

type providerCall struct {
	method     string
	calendarID string
	eventID    string
	event      calendar.Event
}

// fakeProvider keeps external calendar state in memory and lets tests script
// failures per (method, event id).
type fakeProvider struct {
	mu       gosync.Mutex
	events   map[string]calendar.Event
	calls    []providerCall
	failures map[string]error // keyed "method:eventID"
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		events:   map[string]calendar.Event{},
		failures: map[string]error{},
	}
}

func (p *fakeProvider) failOn(method, eventID string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[method+":"+eventID] = err
}

func (p *fakeProvider) record(method, calendarID, eventID string, ev calendar.Event) {
	p.calls = append(p.calls, providerCall{method: method, calendarID: calendarID, eventID: eventID, event: ev})
}

func (p *fakeProvider) callCount(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if method == "" || c.method == method {
			n++
		}
	}
	return n
}

func (p *fakeProvider) resetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}

func (p *fakeProvider) Create(ctx context.Context, token, calendarID string, ev calendar.Event, deterministicID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("create", calendarID, deterministicID, ev)
	if err := p.failures["create:"+deterministicID]; err != nil {
		return "", err
	}
	if _, exists := p.events[deterministicID]; exists {
		return "", calendar.NewError(calendar.CodeConflict, "event %s already exists", deterministicID)
	}
	p.events[deterministicID] = ev
	return deterministicID, nil
}

func (p *fakeProvider) Update(ctx context.Context, token, calendarID, eventID string, ev calendar.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("update", calendarID, eventID, ev)
	if err := p.failures["update:"+eventID]; err != nil {
		return err
	}
	if _, exists := p.events[eventID]; !exists {
		return calendar.NewError(calendar.CodeNotFound, "event %s not found", eventID)
	}
	p.events[eventID] = ev
	return nil
}

func (p *fakeProvider) Delete(ctx context.Context, token, calendarID, eventID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("delete", calendarID, eventID, calendar.Event{})
	if err := p.failures["delete:"+eventID]; err != nil {
		return err
	}
	if _, exists := p.events[eventID]; !exists {
		return calendar.NewError(calendar.CodeGone, "event %s already gone", eventID)
	}
	delete(p.events, eventID)
	return nil
}

func (p *fakeProvider) List(ctx context.Context, token, calendarID, pageToken string) (*calendar.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	page := &calendar.Page{}
	for id, ev := range p.events {
		page.Items = append(page.Items, calendar.RemoteEvent{ID: id, Title: ev.Title, Start: ev.Start, End: ev.End})
	}
	return page, nil
}

// --- stores ---

type fakeBirthdayStore struct {
	mu        gosync.Mutex
	birthdays map[string]*store.Birthday
	syncState map[string]store.SyncState
}

func newFakeBirthdayStore(bs ...*store.Birthday) *fakeBirthdayStore {
	s := &fakeBirthdayStore{
		birthdays: map[string]*store.Birthday{},
		syncState: map[string]store.SyncState{},
	}
	for _, b := range bs {
		s.birthdays[b.ID] = b
	}
	return s
}

func (s *fakeBirthdayStore) Get(ctx context.Context, id string) (*store.Birthday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.birthdays[id], nil
}

func (s *fakeBirthdayStore) Create(ctx context.Context, b *store.Birthday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.birthdays[b.ID] = b
	return nil
}

func (s *fakeBirthdayStore) Update(ctx context.Context, b *store.Birthday) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.birthdays[b.ID] = b
	return nil
}

func (s *fakeBirthdayStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.birthdays, id)
	return nil
}

func (s *fakeBirthdayStore) UpdateSyncState(ctx context.Context, id string, state store.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.syncState[id] = state
	if b, ok := s.birthdays[id]; ok {
		b.EventMap = state.EventMap
		b.SyncStatus = state.Status
		b.SyncHash = state.Hash
		b.FailedKeys = state.FailedKeys
		b.RetryCount = state.RetryCount
		t := state.LastAttempt
		b.LastSyncAttempt = &t
	}
	return nil
}

func (s *fakeBirthdayStore) MarkSyncError(ctx context.Context, id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.birthdays[id]; ok {
		b.SyncStatus = store.StatusError
		if b.RetryCount != store.RetryBroken {
			b.RetryCount++
		}
	}
	return nil
}

func (s *fakeBirthdayStore) ListRetryable(ctx context.Context, limit int) ([]*store.Birthday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*store.Birthday
	for _, b := range s.birthdays {
		if b.Archived {
			continue
		}
		if b.SyncStatus == store.StatusPartial || b.SyncStatus == store.StatusError {
			out = append(out, b)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeBirthdayStore) stateFor(id string) (store.SyncState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.syncState[id]
	return st, ok
}

type fakeTenantStore struct {
	tenants map[string]*store.Tenant
}

func (s *fakeTenantStore) Get(ctx context.Context, id string) (*store.Tenant, error) {
	return s.tenants[id], nil
}

type fakeGroupStore struct {
	groups map[string]*store.Group
}

func (s *fakeGroupStore) GetMany(ctx context.Context, ids []string) ([]*store.Group, error) {
	var out []*store.Group
	for _, id := range ids {
		if g, ok := s.groups[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

type fakeWishlistStore struct {
	items map[string][]*store.WishlistItem
}

func (s *fakeWishlistStore) ListByBirthday(ctx context.Context, birthdayID string) ([]*store.WishlistItem, error) {
	return s.items[birthdayID], nil
}

type fakeUserStore struct {
	mu    gosync.Mutex
	users map[string]*store.User
	flags []bool // history of SetBulkSyncActive values
}

func (s *fakeUserStore) Get(ctx context.Context, id string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeUserStore) SetBulkSyncActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.BulkSyncActive = active
	}
	s.flags = append(s.flags, active)
	return nil
}

type fakeCredentialStore struct {
	token      string
	tokenErr   error
	calendarID string
}

func (s *fakeCredentialStore) GetValidToken(ctx context.Context, userID string) (string, error) {
	if s.tokenErr != nil {
		return "", s.tokenErr
	}
	return s.token, nil
}

func (s *fakeCredentialStore) GetTargetCalendarID(ctx context.Context, userID string) (string, error) {
	return s.calendarID, nil
}

type fakeJobStore struct {
	mu   gosync.Mutex
	jobs map[string]*store.SyncJob
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[string]*store.SyncJob{}}
}

func (s *fakeJobStore) Create(ctx context.Context, job *store.SyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

func (s *fakeJobStore) Get(ctx context.Context, id string) (*store.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) AddProgress(ctx context.Context, id string, errMessage string) (*store.SyncJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	job.ProcessedItems++
	if errMessage != "" {
		job.Errors = append(job.Errors, errMessage)
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) Complete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = store.JobCompleted
	}
	return nil
}

// syncQueue runs every task inline, ignoring delays. Bulk tests stay
// deterministic without sleeping.
type syncQueue struct{}

func (syncQueue) Enqueue(task Task, delay time.Duration) {
	task(context.Background())
}

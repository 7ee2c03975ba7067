package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"birthday-sync-service/internal/calendar"
	"birthday-sync-service/internal/config"
	"birthday-sync-service/internal/logger"
	"birthday-sync-service/internal/store"
)

// Stores groups the document collaborators the service needs; the zero-value
// check in NewService keeps wiring mistakes loud.
type Stores struct {
	Birthdays   store.BirthdayStore
	Tenants     store.TenantStore
	Groups      store.GroupStore
	Wishlists   store.WishlistStore
	Users       store.UserStore
	Credentials store.CredentialStore
	Jobs        store.JobStore
}

// Service wires planner, reconciler, bulk coordinator and retry sweeper
// behind one facade, and owns the birthday write paths that trigger sync.
type Service struct {
	stores      Stores
	reconciler  *Reconciler
	coordinator *Coordinator
	sweeper     *Sweeper
	queue       *MemoryQueue
	clock       Clock

	mu     gosync.Mutex
	status string
}

func NewService(cfg *config.Config, stores Stores, provider calendar.Provider, clock Clock) (*Service, error) {
	if stores.Birthdays == nil || stores.Tenants == nil || stores.Groups == nil ||
		stores.Wishlists == nil || stores.Users == nil || stores.Credentials == nil || stores.Jobs == nil {
		return nil, fmt.Errorf("sync service: all stores must be provided")
	}
	if clock == nil {
		clock = RealClock{}
	}

	planner := NewPlanner(clock, cfg.Sync.WindowYears)
	reconciler := NewReconciler(
		stores.Birthdays, stores.Tenants, stores.Groups, stores.Wishlists,
		stores.Credentials, provider, planner, clock,
	)
	queue := NewMemoryQueue(cfg.Sync.QueueWorkers)
	coordinator := NewCoordinator(
		stores.Birthdays, stores.Users, stores.Jobs,
		reconciler, queue,
		cfg.Sync.ChunkSize, time.Duration(cfg.Sync.ChunkDelaySeconds)*time.Second,
	)
	sweeper := NewSweeper(cfg.Scheduler, cfg.Sync, stores.Birthdays, reconciler)

	return &Service{
		stores:      stores,
		reconciler:  reconciler,
		coordinator: coordinator,
		sweeper:     sweeper,
		queue:       queue,
		clock:       clock,
		status:      "idle",
	}, nil
}

func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == "running" {
		return
	}
	logger.Log.Info("Starting sync service")
	s.queue.Start()
	s.sweeper.Start()
	s.status = "running"
}

func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != "running" {
		return
	}
	logger.Log.Info("Stopping sync service")
	s.sweeper.Stop()
	s.queue.Stop()
	s.status = "idle"
}

func (s *Service) GetStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CreateBirthday persists a new record with derived Hebrew fields and runs
// the first reconciliation pass.
func (s *Service) CreateBirthday(ctx context.Context, b *store.Birthday) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.EventMap == nil {
		b.EventMap = map[string]string{}
	}
	ApplyHebrewFields(b, s.clock.Now())

	if err := s.stores.Birthdays.Create(ctx, b); err != nil {
		return fmt.Errorf("create birthday: %w", err)
	}
	return s.syncAndRecord(ctx, b, false)
}

// UpdateBirthday re-derives the Hebrew fields, persists the user edit, and
// reconciles. The content hash decides whether external work happens.
func (s *Service) UpdateBirthday(ctx context.Context, b *store.Birthday) error {
	ApplyHebrewFields(b, s.clock.Now())
	if err := s.stores.Birthdays.Update(ctx, b); err != nil {
		return fmt.Errorf("update birthday: %w", err)
	}
	return s.syncAndRecord(ctx, b, false)
}

// DeleteBirthday runs a final reconciliation pass that removes every external
// event (the record is treated as archived), then deletes the record itself.
// Persisting sync state is pointless on a row about to disappear.
func (s *Service) DeleteBirthday(ctx context.Context, id string) error {
	b, err := s.stores.Birthdays.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load birthday: %w", err)
	}
	if b == nil {
		return nil
	}

	b.Archived = true
	if err := s.reconciler.Reconcile(ctx, b, true, true); err != nil {
		logger.Log.Warn("final cleanup pass failed, deleting record anyway",
			zap.String("birthdayID", id), zap.Error(err))
	}

	if err := s.stores.Birthdays.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete birthday: %w", err)
	}
	return nil
}

// SyncBirthday reconciles one birthday on demand.
func (s *Service) SyncBirthday(ctx context.Context, id string, force bool) error {
	b, err := s.stores.Birthdays.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("load birthday: %w", err)
	}
	if b == nil {
		return fmt.Errorf("birthday not found")
	}
	return s.syncAndRecord(ctx, b, force)
}

func (s *Service) syncAndRecord(ctx context.Context, b *store.Birthday, force bool) error {
	if err := s.reconciler.Reconcile(ctx, b, force, false); err != nil {
		if merr := s.stores.Birthdays.MarkSyncError(ctx, b.ID, err.Error()); merr != nil {
			logger.Log.Error("failed to mark sync error", zap.String("birthdayID", b.ID), zap.Error(merr))
		}
		return err
	}
	return nil
}

// StartBulkSync fans out a user-selected batch; see Coordinator.
func (s *Service) StartBulkSync(ctx context.Context, userID string, birthdayIDs []string) (string, error) {
	return s.coordinator.StartBulkSync(ctx, userID, birthdayIDs)
}

// ListRemoteEvents exposes the raw provider listing for one birthday's
// target calendar.
func (s *Service) ListRemoteEvents(ctx context.Context, birthdayID, pageToken string) (*calendar.Page, error) {
	b, err := s.stores.Birthdays.Get(ctx, birthdayID)
	if err != nil {
		return nil, fmt.Errorf("load birthday: %w", err)
	}
	if b == nil {
		return nil, fmt.Errorf("birthday not found")
	}
	return s.reconciler.ListRemoteEvents(ctx, b, pageToken)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*store.SyncJob, error) {
	return s.stores.Jobs.Get(ctx, jobID)
}

// Sweep triggers one retry sweep outside the cron schedule.
func (s *Service) Sweep(ctx context.Context) {
	s.sweeper.Sweep(ctx)
}

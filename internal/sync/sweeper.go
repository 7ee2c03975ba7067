package sync

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"birthday-sync-service/internal/config"
	"birthday-sync-service/internal/logger"
	"birthday-sync-service/internal/store"
)

// Sweeper periodically re-submits birthdays stuck in PARTIAL_SYNC or ERROR.
// Unlike the per-birthday operation queue, the sweep runs cross-birthday with
// a small bounded worker pool.
type Sweeper struct {
	cfg        config.SchedulerConfig
	birthdays  store.BirthdayStore
	reconciler *Reconciler
	cron       *cron.Cron
	entryID    cron.EntryID
	batchSize  int
	workers    int
	retryCap   int

	mu      sync.Mutex
	running bool
}

func NewSweeper(cfg config.SchedulerConfig, syncCfg config.SyncConfig, birthdays store.BirthdayStore, reconciler *Reconciler) *Sweeper {
	workers := syncCfg.SweepWorkers
	if workers < 1 {
		workers = 1
	}
	return &Sweeper{
		cfg:        cfg,
		birthdays:  birthdays,
		reconciler: reconciler,
		cron:       cron.New(),
		batchSize:  syncCfg.SweepBatchSize,
		workers:    workers,
		retryCap:   syncCfg.RetryCap,
	}
}

func (s *Sweeper) Start() {
	if !s.cfg.Enabled {
		logger.Log.Info("Retry sweeper is disabled")
		return
	}

	logger.Log.Info("Starting retry sweeper", zap.String("interval", s.cfg.Interval))

	id, err := s.cron.AddFunc(s.cfg.Interval, func() {
		s.Sweep(context.Background())
	})
	if err != nil {
		logger.Log.Error("Failed to schedule retry sweep", zap.Error(err))
		return
	}

	s.entryID = id
	s.cron.Start()
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	logger.Log.Info("Stopped retry sweeper")
}

// Sweep runs one pass over the stale batch. Overlapping passes are skipped
// rather than queued.
func (s *Sweeper) Sweep(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Log.Info("Retry sweep already running, skipping")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	stale, err := s.birthdays.ListRetryable(ctx, s.batchSize)
	if err != nil {
		logger.Log.Error("Failed to list retryable birthdays", zap.Error(err))
		return
	}

	eligible := make([]*store.Birthday, 0, len(stale))
	for _, b := range stale {
		// A counter at the broken sentinel or past the cap means the owner's
		// token is known dead; re-trying would just hammer it.
		if b.RetryCount == store.RetryBroken || b.RetryCount >= s.retryCap {
			continue
		}
		eligible = append(eligible, b)
	}
	if len(eligible) == 0 {
		return
	}

	logger.Log.Info("Retry sweep starting",
		zap.Int("stale", len(stale)),
		zap.Int("eligible", len(eligible)))

	work := make(chan *store.Birthday)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range work {
				if err := s.reconciler.Reconcile(ctx, b, false, false); err != nil {
					if merr := s.birthdays.MarkSyncError(ctx, b.ID, err.Error()); merr != nil {
						logger.Log.Error("failed to mark sync error",
							zap.String("birthdayID", b.ID), zap.Error(merr))
					}
				}
			}
		}()
	}
	for _, b := range eligible {
		work <- b
	}
	close(work)
	wg.Wait()
}

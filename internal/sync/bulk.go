package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"birthday-sync-service/internal/logger"
	"birthday-sync-service/internal/store"
)

// Coordinator fans a multi-birthday sync request out into chunked, staggered
// background tasks and tracks aggregate progress in a SyncJob.
type Coordinator struct {
	birthdays  store.BirthdayStore
	users      store.UserStore
	jobs       store.JobStore
	reconciler *Reconciler
	queue      Queue
	chunkSize  int
	chunkDelay time.Duration
}

func NewCoordinator(
	birthdays store.BirthdayStore,
	users store.UserStore,
	jobs store.JobStore,
	reconciler *Reconciler,
	queue Queue,
	chunkSize int,
	chunkDelay time.Duration,
) *Coordinator {
	if chunkSize < 1 {
		chunkSize = 5
	}
	return &Coordinator{
		birthdays:  birthdays,
		users:      users,
		jobs:       jobs,
		reconciler: reconciler,
		queue:      queue,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
	}
}

// StartBulkSync creates the job record and enqueues one task per chunk, each
// delayed a step further than the last to spread provider load.
func (c *Coordinator) StartBulkSync(ctx context.Context, userID string, birthdayIDs []string) (string, error) {
	job := &store.SyncJob{
		ID:         uuid.New().String(),
		UserID:     userID,
		TotalItems: len(birthdayIDs),
		Status:     store.JobPending,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create sync job: %w", err)
	}
	if err := c.users.SetBulkSyncActive(ctx, userID, true); err != nil {
		return "", fmt.Errorf("mark bulk sync active: %w", err)
	}

	chunks := chunkIDs(birthdayIDs, c.chunkSize)
	for i, chunk := range chunks {
		chunk := chunk
		delay := time.Duration(i) * c.chunkDelay
		c.queue.Enqueue(func(taskCtx context.Context) {
			c.processChunk(taskCtx, chunk, userID, job.ID)
		}, delay)
	}

	logger.Log.Info("bulk sync started",
		zap.String("jobID", job.ID),
		zap.String("userID", userID),
		zap.Int("items", len(birthdayIDs)),
		zap.Int("chunks", len(chunks)))
	return job.ID, nil
}

// processChunk reconciles each birthday in the chunk (not forced, so the
// idempotency short-circuit still applies within a bulk run) and reports
// per-item results into the job.
func (c *Coordinator) processChunk(ctx context.Context, birthdayIDs []string, userID, jobID string) {
	for _, id := range birthdayIDs {
		errMessage := ""
		if err := c.syncOne(ctx, id); err != nil {
			errMessage = fmt.Sprintf("%s: %v", id, err)
		}

		job, err := c.jobs.AddProgress(ctx, jobID, errMessage)
		if err != nil {
			logger.Log.Error("failed to record job progress",
				zap.String("jobID", jobID), zap.Error(err))
			continue
		}
		if job != nil && job.ProcessedItems >= job.TotalItems && job.Status != store.JobCompleted {
			if err := c.jobs.Complete(ctx, jobID); err != nil {
				logger.Log.Error("failed to complete job", zap.String("jobID", jobID), zap.Error(err))
			}
			if err := c.users.SetBulkSyncActive(ctx, userID, false); err != nil {
				logger.Log.Error("failed to reset bulk sync flag", zap.String("userID", userID), zap.Error(err))
			}
			logger.Log.Info("bulk sync completed",
				zap.String("jobID", jobID),
				zap.Int("items", job.TotalItems),
				zap.Int("errors", len(job.Errors)))
		}
	}
}

func (c *Coordinator) syncOne(ctx context.Context, birthdayID string) error {
	b, err := c.birthdays.Get(ctx, birthdayID)
	if err != nil {
		return fmt.Errorf("load birthday: %w", err)
	}
	if b == nil {
		return fmt.Errorf("birthday not found")
	}
	if err := c.reconciler.Reconcile(ctx, b, false, false); err != nil {
		if merr := c.birthdays.MarkSyncError(ctx, birthdayID, err.Error()); merr != nil {
			logger.Log.Error("failed to mark sync error", zap.String("birthdayID", birthdayID), zap.Error(merr))
		}
		return err
	}
	return nil
}

func chunkIDs(ids []string, size int) [][]string {
	var chunks [][]string
	for len(ids) > 0 {
		n := size
		if n > len(ids) {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}

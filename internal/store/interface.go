package store

import (
	"context"
	"errors"
)

// Credential failures stay coarse: the reconciler only distinguishes
// "not connected yet", "dead for good", and "try again later".
var (
	ErrNotConnected = errors.New("calendar account not connected")
	ErrRevoked      = errors.New("calendar credentials revoked")
	ErrTemporary    = errors.New("temporary credential failure")
)

type BirthdayStore interface {
	Get(ctx context.Context, id string) (*Birthday, error)
	Create(ctx context.Context, b *Birthday) error
	Update(ctx context.Context, b *Birthday) error
	Delete(ctx context.Context, id string) error

	// UpdateSyncState persists the reconciler's bookkeeping without touching
	// user-owned fields.
	UpdateSyncState(ctx context.Context, id string, state SyncState) error
	// MarkSyncError records a whole-pass failure (status ERROR, retry counter
	// bumped unless pinned at RetryBroken).
	MarkSyncError(ctx context.Context, id string, message string) error
	// ListRetryable returns non-archived birthdays in PARTIAL_SYNC or ERROR,
	// oldest attempt first, capped at limit.
	ListRetryable(ctx context.Context, limit int) ([]*Birthday, error)
}

type TenantStore interface {
	Get(ctx context.Context, id string) (*Tenant, error)
}

type GroupStore interface {
	GetMany(ctx context.Context, ids []string) ([]*Group, error)
}

type WishlistStore interface {
	ListByBirthday(ctx context.Context, birthdayID string) ([]*WishlistItem, error)
}

type UserStore interface {
	Get(ctx context.Context, id string) (*User, error)
	SetBulkSyncActive(ctx context.Context, id string, active bool) error
}

// CredentialStore owns the external calendar credentials. It is the only
// layer allowed to set RetryBroken on a birthday (when it detects a revoked
// refresh token); sync code treats the sentinel as read-only.
type CredentialStore interface {
	// GetValidToken returns a usable access token, refreshing if needed.
	// Fails with ErrNotConnected, ErrRevoked or ErrTemporary.
	GetValidToken(ctx context.Context, userID string) (string, error)
	// GetTargetCalendarID returns the dedicated calendar the user syncs into,
	// or empty if none is configured.
	GetTargetCalendarID(ctx context.Context, userID string) (string, error)
}

type JobStore interface {
	Create(ctx context.Context, job *SyncJob) error
	Get(ctx context.Context, id string) (*SyncJob, error)
	// AddProgress atomically increments the processed counter, appending an
	// error message when non-empty, and returns the updated job.
	AddProgress(ctx context.Context, id string, errMessage string) (*SyncJob, error)
	Complete(ctx context.Context, id string) error
}

package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"birthday-sync-service/internal/calendar"
	"birthday-sync-service/internal/hebcal"
	"birthday-sync-service/internal/logger"
	"birthday-sync-service/internal/store"
)

// ErrPrimaryCalendar is returned when a user's target calendar is the
// provider's primary calendar. Syncing into it would interleave generated
// events with the user's own; a dedicated calendar is mandatory.
var ErrPrimaryCalendar = errors.New("refusing to sync into the primary calendar")

// Reconciler drives one birthday from its current external calendar state to
// the desired state: plan, diff, execute, persist. All collaborators are
// injected at construction.
type Reconciler struct {
	birthdays   store.BirthdayStore
	tenants     store.TenantStore
	groups      store.GroupStore
	wishlists   store.WishlistStore
	credentials store.CredentialStore
	provider    calendar.Provider
	planner     *Planner
	clock       Clock
}

func NewReconciler(
	birthdays store.BirthdayStore,
	tenants store.TenantStore,
	groups store.GroupStore,
	wishlists store.WishlistStore,
	credentials store.CredentialStore,
	provider calendar.Provider,
	planner *Planner,
	clock Clock,
) *Reconciler {
	return &Reconciler{
		birthdays:   birthdays,
		tenants:     tenants,
		groups:      groups,
		wishlists:   wishlists,
		credentials: credentials,
		provider:    provider,
		planner:     planner,
		clock:       clock,
	}
}

// Reconcile runs one full reconciliation pass for b. With force the
// idempotency short-circuit is bypassed; with skipPersist the final state is
// not written back (used when the record itself is about to be deleted).
//
// Repeated invocation with unchanged inputs is a no-op after the first
// successful pass.
func (r *Reconciler) Reconcile(ctx context.Context, b *store.Birthday, force, skipPersist bool) error {
	log := logger.Log.With(zap.String("birthdayID", b.ID), zap.String("tenantID", b.TenantID))

	tenant, target, err := r.resolveTarget(ctx, log, b)
	if err != nil {
		return err
	}
	if target == nil {
		// Not an error: the birthday simply is not synced yet.
		return nil
	}
	token, calendarID := target.token, target.calendarID

	hash := ContentHash(b)
	if !force && len(b.EventMap) > 0 && b.SyncHash == hash && b.SyncStatus == store.StatusSynced {
		log.Debug("content hash unchanged, short-circuiting")
		return nil
	}

	groups, err := r.groups.GetMany(ctx, b.GroupIDs)
	if err != nil {
		return fmt.Errorf("load groups: %w", err)
	}
	wishlist, err := r.wishlists.ListByBirthday(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("load wishlist: %w", err)
	}

	desired := r.planner.BuildEvents(b, tenant, groups, wishlist)
	ops := r.diff(b, desired)

	newMap, failedKeys := r.execute(ctx, log, token, calendarID, b, ops)

	if skipPersist {
		return nil
	}

	state := store.SyncState{
		EventMap:    newMap,
		Status:      store.StatusSynced,
		Hash:        hash,
		FailedKeys:  failedKeys,
		RetryCount:  0,
		LastAttempt: r.clock.Now().UTC(),
	}
	if len(failedKeys) > 0 {
		state.Status = store.StatusPartial
		state.RetryCount = nextRetryCount(b)
	}

	if err := r.birthdays.UpdateSyncState(ctx, b.ID, state); err != nil {
		return fmt.Errorf("persist sync state: %w", err)
	}

	b.EventMap = newMap
	b.SyncStatus = state.Status
	b.SyncHash = hash
	b.FailedKeys = failedKeys
	b.RetryCount = state.RetryCount

	log.Info("reconciliation pass finished",
		zap.Int("operations", len(ops)),
		zap.Int("failed", len(failedKeys)),
		zap.String("status", string(state.Status)))
	return nil
}

// syncTarget is a resolved (token, calendar) pair for a birthday's owner.
type syncTarget struct {
	token      string
	calendarID string
}

// resolveTarget walks birthday -> tenant -> owner -> credentials. A nil
// target with nil error means the birthday cannot be synced yet (no owner,
// no credentials, no dedicated calendar) and the pass should end silently.
func (r *Reconciler) resolveTarget(ctx context.Context, log *zap.Logger, b *store.Birthday) (*store.Tenant, *syncTarget, error) {
	tenant, err := r.tenants.Get(ctx, b.TenantID)
	if err != nil {
		return nil, nil, fmt.Errorf("load tenant: %w", err)
	}
	if tenant == nil || tenant.OwnerUserID == "" {
		log.Debug("tenant has no owner, skipping sync")
		return tenant, nil, nil
	}

	token, err := r.credentials.GetValidToken(ctx, tenant.OwnerUserID)
	if errors.Is(err, store.ErrNotConnected) || errors.Is(err, store.ErrRevoked) {
		// A revoked token is surfaced by the credential layer via the retry
		// sentinel, not by this pass.
		log.Debug("no usable calendar credentials, skipping sync", zap.Error(err))
		return tenant, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("resolve credentials: %w", err)
	}

	calendarID, err := r.credentials.GetTargetCalendarID(ctx, tenant.OwnerUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve target calendar: %w", err)
	}
	if calendarID == "" {
		log.Debug("no target calendar configured, skipping sync")
		return tenant, nil, nil
	}
	if calendarID == "primary" {
		log.Error("target calendar is the provider primary calendar, refusing to sync")
		return nil, nil, ErrPrimaryCalendar
	}

	return tenant, &syncTarget{token: token, calendarID: calendarID}, nil
}

// ListRemoteEvents pages through the raw events on the birthday owner's
// target calendar. Diagnostic surface; the engine itself never lists.
func (r *Reconciler) ListRemoteEvents(ctx context.Context, b *store.Birthday, pageToken string) (*calendar.Page, error) {
	log := logger.Log.With(zap.String("birthdayID", b.ID))
	_, target, err := r.resolveTarget(ctx, log, b)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return &calendar.Page{}, nil
	}
	return r.provider.List(ctx, target.token, target.calendarID, pageToken)
}

// nextRetryCount bumps the counter on a failed pass, preserving the broken
// sentinel and never re-incrementing a record already in ERROR.
func nextRetryCount(b *store.Birthday) int {
	if b.RetryCount == store.RetryBroken {
		return store.RetryBroken
	}
	if b.SyncStatus == store.StatusError {
		return b.RetryCount
	}
	return b.RetryCount + 1
}

// diff queues creates, updates, then deletes, in that order. Deletes of keys
// that fell out of the desired set are limited to future anniversaries unless
// the record is archived: past events are historical record and stay.
func (r *Reconciler) diff(b *store.Birthday, desired []Event) []operation {
	var creates, updates, deletes []operation

	desiredKeys := make(map[string]struct{}, len(desired))
	for _, ev := range desired {
		key := ev.Key()
		desiredKeys[key] = struct{}{}
		if id, ok := b.EventMap[key]; ok {
			updates = append(updates, operation{kind: opUpdate, key: key, eventID: id, event: ev})
		} else {
			creates = append(creates, operation{kind: opCreate, key: key, event: ev})
		}
	}

	staleKeys := make([]string, 0, len(b.EventMap))
	for key := range b.EventMap {
		if _, ok := desiredKeys[key]; !ok {
			staleKeys = append(staleKeys, key)
		}
	}
	sort.Strings(staleKeys)
	for _, key := range staleKeys {
		if b.Archived || r.keyIsFuture(key) {
			deletes = append(deletes, operation{kind: opDelete, key: key, eventID: b.EventMap[key]})
		}
	}

	ops := make([]operation, 0, len(creates)+len(updates)+len(deletes))
	ops = append(ops, creates...)
	ops = append(ops, updates...)
	return append(ops, deletes...)
}

// keyIsFuture compares the key's year against the current year of its own
// calendar system.
func (r *Reconciler) keyIsFuture(key string) bool {
	system, year, ok := ParseKey(key)
	if !ok {
		return false
	}
	now := r.clock.Now()
	switch system {
	case SystemHebrew:
		return year >= hebcal.FromGregorian(now, false).Year
	default:
		return year >= now.Year()
	}
}

// execute runs the queued operations strictly one at a time (the per-birthday
// queue must stay sequential for the provider's rate limit) and accumulates
// failures without aborting the rest of the queue.
func (r *Reconciler) execute(ctx context.Context, log *zap.Logger, token, calendarID string, b *store.Birthday, ops []operation) (map[string]string, []string) {
	newMap := make(map[string]string, len(b.EventMap)+len(ops))
	for key, id := range b.EventMap {
		newMap[key] = id
	}

	failed := make([]string, 0)
	fail := func(op operation, err error) {
		log.Warn("calendar operation failed",
			zap.String("key", op.key),
			zap.Int("op", int(op.kind)),
			zap.Error(err))
		failed = append(failed, op.key)
	}

	for _, op := range ops {
		switch op.kind {
		case opCreate:
			id, err := r.createAtDeterministicID(ctx, token, calendarID, b.ID, op)
			if err != nil {
				fail(op, err)
				continue
			}
			newMap[op.key] = id

		case opUpdate:
			err := r.provider.Update(ctx, token, calendarID, op.eventID, toCalendarEvent(op.event))
			if err != nil && calendar.IsMissing(err) {
				// Deleted externally by a human: re-create at the
				// deterministic id and adopt whatever id results.
				id, cerr := r.createAtDeterministicID(ctx, token, calendarID, b.ID, op)
				if cerr != nil {
					fail(op, cerr)
					continue
				}
				newMap[op.key] = id
				continue
			}
			if err != nil {
				fail(op, err)
				continue
			}
			newMap[op.key] = op.eventID

		case opDelete:
			err := r.provider.Delete(ctx, token, calendarID, op.eventID)
			if err != nil && !calendar.IsMissing(err) {
				fail(op, err)
				continue
			}
			// Already gone counts as deleted.
			delete(newMap, op.key)
		}
	}

	return newMap, failed
}

// createAtDeterministicID creates the event under its derived id. A conflict
// means a previous run created it externally but failed to persist locally;
// updating in place at the same id is the success-path recovery.
func (r *Reconciler) createAtDeterministicID(ctx context.Context, token, calendarID, birthdayID string, op operation) (string, error) {
	deterministicID := DeterministicID(birthdayID, op.key)
	ev := toCalendarEvent(op.event)

	id, err := r.provider.Create(ctx, token, calendarID, ev, deterministicID)
	if err == nil {
		return id, nil
	}
	if !calendar.IsConflict(err) {
		return "", err
	}
	if uerr := r.provider.Update(ctx, token, calendarID, deterministicID, ev); uerr != nil {
		return "", fmt.Errorf("conflict recovery update: %w", uerr)
	}
	return deterministicID, nil
}

func toCalendarEvent(ev Event) calendar.Event {
	return calendar.Event{
		Title:       ev.Title,
		Description: ev.Description,
		Start:       ev.Start,
		End:         ev.End,
		AllDay:      true,
		Reminders:   ev.Reminders,
		Metadata: map[string]string{
			"tenantId":   ev.TenantID,
			"birthdayId": ev.BirthdayID,
		},
	}
}

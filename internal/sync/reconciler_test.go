package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"birthday-sync-service/internal/store"
)

// June 15, 2025 = 19 Sivan 5785.
var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func testBirthday() *store.Birthday {
	return &store.Birthday{
		ID:         "bd-1",
		TenantID:   "t-1",
		FirstName:  "Noa",
		LastName:   "Levi",
		BirthDate:  time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC),
		Preference: store.PreferenceGregorian,
		EventMap:   map[string]string{},
	}
}

type testEnv struct {
	birthdays  *fakeBirthdayStore
	tenants    *fakeTenantStore
	provider   *fakeProvider
	creds      *fakeCredentialStore
	reconciler *Reconciler
}

// newTestEnv builds a reconciler over fakes with a two-year planning window,
// so a Gregorian-only birthday yields three desired events (2025..2027).
func newTestEnv(b *store.Birthday) *testEnv {
	clock := fakeClock{now: testNow}
	env := &testEnv{
		birthdays: newFakeBirthdayStore(b),
		tenants: &fakeTenantStore{tenants: map[string]*store.Tenant{
			"t-1": {ID: "t-1", Name: "Levi family", OwnerUserID: "u-1"},
		}},
		provider: newFakeProvider(),
		creds:    &fakeCredentialStore{token: "tok", calendarID: "cal-1"},
	}
	env.reconciler = NewReconciler(
		env.birthdays,
		env.tenants,
		&fakeGroupStore{groups: map[string]*store.Group{}},
		&fakeWishlistStore{items: map[string][]*store.WishlistItem{}},
		env.creds,
		env.provider,
		NewPlanner(clock, 2),
		clock,
	)
	return env
}

func TestReconcileCreatesDesiredEvents(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Equal(t, store.StatusSynced, b.SyncStatus)
	assert.Empty(t, b.FailedKeys)
	assert.Zero(t, b.RetryCount)
	require.Len(t, b.EventMap, 3)
	for _, key := range []string{"gregorian_2025", "gregorian_2026", "gregorian_2027"} {
		assert.Equal(t, DeterministicID(b.ID, key), b.EventMap[key])
	}
	assert.Equal(t, 3, env.provider.callCount("create"))
}

func TestReconcileIdempotency(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
	env.provider.resetCalls()

	// Same inputs, no external change: zero calls the second time.
	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
	assert.Zero(t, env.provider.callCount(""))
	assert.Equal(t, store.StatusSynced, b.SyncStatus)
}

func TestReconcileHashSensitivity(t *testing.T) {
	fields := []struct {
		name   string
		mutate func(b *store.Birthday)
	}{
		{"first name", func(b *store.Birthday) { b.FirstName = "Maya" }},
		{"birth date", func(b *store.Birthday) { b.BirthDate = b.BirthDate.AddDate(0, 0, 1) }},
		{"after sunset", func(b *store.Birthday) { b.AfterSunset = true }},
		{"notes", func(b *store.Birthday) { b.Notes = "loves chess" }},
		{"preference", func(b *store.Birthday) { b.Preference = store.PreferenceBoth }},
		{"groups", func(b *store.Birthday) { b.GroupIDs = []string{"g-1"} }},
	}

	for _, tt := range fields {
		t.Run(tt.name, func(t *testing.T) {
			b := testBirthday()
			env := newTestEnv(b)
			require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
			env.provider.resetCalls()

			tt.mutate(b)
			require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
			assert.NotZero(t, env.provider.callCount(""), "edit must defeat the short-circuit")
		})
	}
}

func TestReconcileForceBypassesShortCircuit(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
	env.provider.resetCalls()

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, true, false))
	assert.Equal(t, 3, env.provider.callCount("update"))
}

func TestReconcileArchivalDeletesEverything(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	// Seed an extra past-year entry: archival must delete past keys too.
	b.EventMap["gregorian_2010"] = "old-external-id"

	b.Archived = true
	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Empty(t, b.EventMap)
	assert.Equal(t, store.StatusSynced, b.SyncStatus)
	assert.Equal(t, 4, env.provider.callCount("delete"))
}

func TestReconcileFutureOnlyPruning(t *testing.T) {
	b := testBirthday() // Gregorian-only: no hebrew keys desired
	b.EventMap = map[string]string{
		"hebrew_5770": "past-id",   // long past (current Hebrew year is 5785)
		"hebrew_5786": "future-id", // next Hebrew year
	}
	env := newTestEnv(b)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Contains(t, b.EventMap, "hebrew_5770", "past anniversaries are historical record")
	assert.NotContains(t, b.EventMap, "hebrew_5786")
	assert.Equal(t, 1, env.provider.callCount("delete"))
}

func TestReconcilePartialFailureIsolation(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	env.provider.failOn("create", DeterministicID(b.ID, "gregorian_2026"), assert.AnError)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Equal(t, store.StatusPartial, b.SyncStatus)
	assert.Equal(t, []string{"gregorian_2026"}, b.FailedKeys)
	assert.Equal(t, 1, b.RetryCount)
	require.Len(t, b.EventMap, 2)
	assert.Contains(t, b.EventMap, "gregorian_2025")
	assert.Contains(t, b.EventMap, "gregorian_2027")
}

func TestReconcileConflictRecovery(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)

	// A previous run created this event externally but never persisted.
	deterministicID := DeterministicID(b.ID, "gregorian_2025")
	env.provider.events[deterministicID] = toCalendarEvent(Event{Title: "stale"})

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Equal(t, store.StatusSynced, b.SyncStatus)
	assert.Equal(t, deterministicID, b.EventMap["gregorian_2025"])
	assert.Equal(t, 1, env.provider.callCount("update"), "conflict must be recovered via update")
}

func TestReconcileRecreatesExternallyDeleted(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	// A human deletes one event behind our back; force a full pass.
	deterministicID := DeterministicID(b.ID, "gregorian_2026")
	delete(env.provider.events, deterministicID)
	env.provider.resetCalls()

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, true, false))

	assert.Equal(t, store.StatusSynced, b.SyncStatus)
	assert.Equal(t, deterministicID, b.EventMap["gregorian_2026"])
	assert.Contains(t, env.provider.events, deterministicID)
}

func TestReconcileRefusesPrimaryCalendar(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	env.creds.calendarID = "primary"

	err := env.reconciler.Reconcile(context.Background(), b, false, false)
	assert.ErrorIs(t, err, ErrPrimaryCalendar)
	assert.Zero(t, env.provider.callCount(""))
	_, persisted := env.birthdays.stateFor(b.ID)
	assert.False(t, persisted, "a refused pass must not write state")
}

func TestReconcileSkipsWhenNotConnected(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	env.creds.tokenErr = store.ErrNotConnected

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
	assert.Zero(t, env.provider.callCount(""))
	assert.Equal(t, store.StatusUnsynced, b.SyncStatus)
}

func TestReconcileTemporaryCredentialFailure(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)
	env.creds.tokenErr = store.ErrTemporary

	err := env.reconciler.Reconcile(context.Background(), b, false, false)
	assert.ErrorIs(t, err, store.ErrTemporary)
	assert.Zero(t, env.provider.callCount(""))
}

func TestReconcilePreservesBrokenSentinel(t *testing.T) {
	b := testBirthday()
	b.SyncStatus = store.StatusError
	b.RetryCount = store.RetryBroken
	env := newTestEnv(b)
	env.provider.failOn("create", DeterministicID(b.ID, "gregorian_2025"), assert.AnError)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Equal(t, store.RetryBroken, b.RetryCount, "sentinel must never be reset by a failed pass")
	assert.Equal(t, store.StatusPartial, b.SyncStatus)
}

func TestReconcileDoesNotReincrementErrorStatus(t *testing.T) {
	b := testBirthday()
	b.SyncStatus = store.StatusError
	b.RetryCount = 2
	env := newTestEnv(b)
	env.provider.failOn("create", DeterministicID(b.ID, "gregorian_2025"), assert.AnError)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))
	assert.Equal(t, 2, b.RetryCount)
}

func TestReconcileSuccessResetsRetryCounter(t *testing.T) {
	b := testBirthday()
	b.SyncStatus = store.StatusPartial
	b.RetryCount = 2
	b.FailedKeys = []string{"gregorian_2026"}
	env := newTestEnv(b)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	assert.Equal(t, store.StatusSynced, b.SyncStatus)
	assert.Zero(t, b.RetryCount)
	assert.Empty(t, b.FailedKeys)
}

func TestReconcileSkipPersist(t *testing.T) {
	b := testBirthday()
	env := newTestEnv(b)

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, true))

	assert.Equal(t, 3, env.provider.callCount("create"), "external work still happens")
	_, persisted := env.birthdays.stateFor(b.ID)
	assert.False(t, persisted)
}

func TestReconcileSequentialExecution(t *testing.T) {
	// The fake provider records calls under one lock; ordering of the queue
	// classes is observable: creates, then updates, then deletes.
	b := testBirthday()
	b.EventMap = map[string]string{
		"gregorian_2025": "existing-2025", // update
		"gregorian_2030": "stale-2030",    // delete (future)
	}
	env := newTestEnv(b)
	env.provider.events["existing-2025"] = toCalendarEvent(Event{Title: "old"})
	env.provider.events["stale-2030"] = toCalendarEvent(Event{Title: "old"})

	require.NoError(t, env.reconciler.Reconcile(context.Background(), b, false, false))

	var order []string
	for _, c := range env.provider.calls {
		order = append(order, c.method)
	}
	assert.Equal(t, []string{"create", "create", "update", "delete"}, order)
}

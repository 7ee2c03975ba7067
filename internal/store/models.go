package store

import (
	"time"
)

type CalendarPreference string

const (
	PreferenceInherit   CalendarPreference = ""
	PreferenceGregorian CalendarPreference = "gregorian"
	PreferenceHebrew    CalendarPreference = "hebrew"
	PreferenceBoth      CalendarPreference = "both"
)

type SyncStatus string

const (
	StatusUnsynced SyncStatus = ""
	StatusSynced   SyncStatus = "SYNCED"
	StatusPartial  SyncStatus = "PARTIAL_SYNC"
	StatusError    SyncStatus = "ERROR"
)

// RetryBroken marks a birthday whose owner's calendar credentials are known
// dead (revoked refresh token). Only CredentialStore implementations may set
// it; sync code reads and preserves it but never clears it.
const RetryBroken = -1

type Birthday struct {
	ID          string             `db:"id" json:"id"`
	TenantID    string             `db:"tenant_id" json:"tenant_id"`
	FirstName   string             `db:"first_name" json:"first_name"`
	LastName    string             `db:"last_name" json:"last_name,omitempty"`
	BirthDate   time.Time          `db:"birth_date" json:"birth_date"`
	AfterSunset bool               `db:"after_sunset" json:"after_sunset"`
	Gender      string             `db:"gender" json:"gender,omitempty"`
	Notes       string             `db:"notes" json:"notes,omitempty"`
	GroupIDs    []string           `db:"group_ids" json:"group_ids,omitempty"`
	Archived    bool               `db:"archived" json:"archived"`
	Preference  CalendarPreference `db:"calendar_preference" json:"calendar_preference,omitempty"`

	// Derived Hebrew date fields, written only by the derivation step.
	HebrewYear          int                 `db:"hebrew_year" json:"hebrew_year"`
	HebrewMonth         int                 `db:"hebrew_month" json:"hebrew_month"`
	HebrewDay           int                 `db:"hebrew_day" json:"hebrew_day"`
	HebrewDateDisplay   string              `db:"hebrew_date_display" json:"hebrew_date_display"`
	NextHebrewBirthday  *time.Time          `db:"next_hebrew_birthday" json:"next_hebrew_birthday,omitempty"`
	HebrewAnniversaries []HebrewAnniversary `db:"hebrew_anniversaries" json:"hebrew_anniversaries,omitempty"`

	// Sync bookkeeping, written only by the reconciler.
	EventMap        map[string]string `db:"event_map" json:"event_map,omitempty"`
	SyncStatus      SyncStatus        `db:"sync_status" json:"sync_status,omitempty"`
	SyncHash        string            `db:"sync_hash" json:"-"`
	FailedKeys      []string          `db:"failed_keys" json:"failed_keys,omitempty"`
	RetryCount      int               `db:"retry_count" json:"retry_count,omitempty"`
	LastSyncAttempt *time.Time        `db:"last_sync_attempt" json:"last_sync_attempt,omitempty"`
}

func (b *Birthday) FullName() string {
	if b.LastName == "" {
		return b.FirstName
	}
	return b.FirstName + " " + b.LastName
}

type HebrewAnniversary struct {
	Date       time.Time `json:"date"`
	HebrewYear int       `json:"hebrew_year"`
}

// SyncState is the reconciler's write-back unit: everything it is allowed to
// touch on a birthday row, persisted in one statement.
type SyncState struct {
	EventMap    map[string]string
	Status      SyncStatus
	Hash        string
	FailedKeys  []string
	RetryCount  int
	LastAttempt time.Time
}

type Tenant struct {
	ID          string             `db:"id" json:"id"`
	Name        string             `db:"name" json:"name"`
	OwnerUserID string             `db:"owner_user_id" json:"owner_user_id"`
	Preference  CalendarPreference `db:"calendar_preference" json:"calendar_preference,omitempty"`
}

type Group struct {
	ID         string             `db:"id" json:"id"`
	TenantID   string             `db:"tenant_id" json:"tenant_id"`
	Name       string             `db:"name" json:"name"`
	Preference CalendarPreference `db:"calendar_preference" json:"calendar_preference,omitempty"`
}

type WishlistPriority string

const (
	PriorityHigh   WishlistPriority = "high"
	PriorityMedium WishlistPriority = "medium"
	PriorityLow    WishlistPriority = "low"
)

type WishlistItem struct {
	ID         string           `db:"id" json:"id"`
	BirthdayID string           `db:"birthday_id" json:"birthday_id"`
	Title      string           `db:"title" json:"title"`
	Priority   WishlistPriority `db:"priority" json:"priority"`
}

type User struct {
	ID             string `db:"id" json:"id"`
	Email          string `db:"email" json:"email"`
	CalendarID     string `db:"calendar_id" json:"calendar_id,omitempty"`
	BulkSyncActive bool   `db:"bulk_sync_active" json:"bulk_sync_active"`
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobCompleted JobStatus = "completed"
)

type SyncJob struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	TotalItems     int       `db:"total_items" json:"total_items"`
	ProcessedItems int       `db:"processed_items" json:"processed_items"`
	Errors         []string  `db:"errors" json:"errors,omitempty"`
	Status         JobStatus `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

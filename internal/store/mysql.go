package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"birthday-sync-service/internal/config"
	"birthday-sync-service/internal/database"
	"birthday-sync-service/internal/logger"
)

// MySQLStore bundles the MySQL-backed document stores behind one connection
// pool. List-ish fields (group ids, event map, failed keys, anniversaries,
// job errors) are stored as JSON columns.
type MySQLStore struct {
	db *database.Database

	Birthdays   *MySQLBirthdayStore
	Tenants     *MySQLTenantStore
	Groups      *MySQLGroupStore
	Wishlists   *MySQLWishlistStore
	Users       *MySQLUserStore
	Credentials *MySQLCredentialStore
	Jobs        *MySQLJobStore
}

func NewMySQLStore(cfg config.DatabaseConnection) (*MySQLStore, error) {
	db, err := database.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to init document store: %w", err)
	}

	users := &MySQLUserStore{db: db.DB}
	return &MySQLStore{
		db:          db,
		Birthdays:   &MySQLBirthdayStore{db: db.DB},
		Tenants:     &MySQLTenantStore{db: db.DB},
		Groups:      &MySQLGroupStore{db: db.DB},
		Wishlists:   &MySQLWishlistStore{db: db.DB},
		Users:       users,
		Credentials: &MySQLCredentialStore{db: db.DB, users: users},
		Jobs:        &MySQLJobStore{db: db},
	}, nil
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func toJSON(v interface{}) []byte {
	b, _ := json.Marshal(v)
	return b
}

func fromJSON(raw sql.NullString, v interface{}) {
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), v)
	}
}

// --- Birthdays ---

type MySQLBirthdayStore struct {
	db *sql.DB
}

const birthdayColumns = `id, tenant_id, first_name, last_name, birth_date, after_sunset, gender, notes,
	group_ids, archived, calendar_preference,
	hebrew_year, hebrew_month, hebrew_day, hebrew_date_display, next_hebrew_birthday, hebrew_anniversaries,
	event_map, sync_status, sync_hash, failed_keys, retry_count, last_sync_attempt`

func scanBirthday(row interface{ Scan(...interface{}) error }) (*Birthday, error) {
	var b Birthday
	var groupIDs, anniversaries, eventMap, failedKeys sql.NullString
	var nextHebrew, lastAttempt sql.NullTime
	var gender, notes, display sql.NullString

	err := row.Scan(
		&b.ID, &b.TenantID, &b.FirstName, &b.LastName, &b.BirthDate, &b.AfterSunset, &gender, &notes,
		&groupIDs, &b.Archived, &b.Preference,
		&b.HebrewYear, &b.HebrewMonth, &b.HebrewDay, &display, &nextHebrew, &anniversaries,
		&eventMap, &b.SyncStatus, &b.SyncHash, &failedKeys, &b.RetryCount, &lastAttempt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.Gender = gender.String
	b.Notes = notes.String
	b.HebrewDateDisplay = display.String
	if nextHebrew.Valid {
		t := nextHebrew.Time
		b.NextHebrewBirthday = &t
	}
	if lastAttempt.Valid {
		t := lastAttempt.Time
		b.LastSyncAttempt = &t
	}
	fromJSON(groupIDs, &b.GroupIDs)
	fromJSON(anniversaries, &b.HebrewAnniversaries)
	fromJSON(eventMap, &b.EventMap)
	fromJSON(failedKeys, &b.FailedKeys)
	if b.EventMap == nil {
		b.EventMap = map[string]string{}
	}
	return &b, nil
}

func (s *MySQLBirthdayStore) Get(ctx context.Context, id string) (*Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays WHERE id = ?`
	return scanBirthday(s.db.QueryRowContext(ctx, query, id))
}

func (s *MySQLBirthdayStore) Create(ctx context.Context, b *Birthday) error {
	query := `INSERT INTO birthdays (` + birthdayColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.TenantID, b.FirstName, b.LastName, b.BirthDate, b.AfterSunset, b.Gender, b.Notes,
		toJSON(b.GroupIDs), b.Archived, b.Preference,
		b.HebrewYear, b.HebrewMonth, b.HebrewDay, b.HebrewDateDisplay, b.NextHebrewBirthday, toJSON(b.HebrewAnniversaries),
		toJSON(b.EventMap), b.SyncStatus, b.SyncHash, toJSON(b.FailedKeys), b.RetryCount, b.LastSyncAttempt,
	)
	return err
}

func (s *MySQLBirthdayStore) Update(ctx context.Context, b *Birthday) error {
	query := `UPDATE birthdays SET
		first_name = ?, last_name = ?, birth_date = ?, after_sunset = ?, gender = ?, notes = ?,
		group_ids = ?, archived = ?, calendar_preference = ?,
		hebrew_year = ?, hebrew_month = ?, hebrew_day = ?, hebrew_date_display = ?, next_hebrew_birthday = ?, hebrew_anniversaries = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query,
		b.FirstName, b.LastName, b.BirthDate, b.AfterSunset, b.Gender, b.Notes,
		toJSON(b.GroupIDs), b.Archived, b.Preference,
		b.HebrewYear, b.HebrewMonth, b.HebrewDay, b.HebrewDateDisplay, b.NextHebrewBirthday, toJSON(b.HebrewAnniversaries),
		b.ID,
	)
	return err
}

func (s *MySQLBirthdayStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM birthdays WHERE id = ?`, id)
	return err
}

func (s *MySQLBirthdayStore) UpdateSyncState(ctx context.Context, id string, state SyncState) error {
	query := `UPDATE birthdays SET
		event_map = ?, sync_status = ?, sync_hash = ?, failed_keys = ?, retry_count = ?, last_sync_attempt = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query,
		toJSON(state.EventMap), state.Status, state.Hash, toJSON(state.FailedKeys),
		state.RetryCount, state.LastAttempt, id,
	)
	return err
}

func (s *MySQLBirthdayStore) MarkSyncError(ctx context.Context, id string, message string) error {
	// The broken sentinel is pinned; everything else gets its counter bumped.
	query := `UPDATE birthdays SET
		sync_status = ?,
		retry_count = IF(retry_count = ?, retry_count, retry_count + 1),
		last_sync_attempt = ?
		WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, StatusError, RetryBroken, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	logger.Log.Warn("birthday marked sync error", zap.String("birthdayID", id), zap.String("reason", message))
	return nil
}

func (s *MySQLBirthdayStore) ListRetryable(ctx context.Context, limit int) ([]*Birthday, error) {
	query := `SELECT ` + birthdayColumns + ` FROM birthdays
		WHERE archived = FALSE AND sync_status IN (?, ?)
		ORDER BY last_sync_attempt ASC
		LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, StatusPartial, StatusError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Birthday
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// --- Tenants ---

type MySQLTenantStore struct {
	db *sql.DB
}

func (s *MySQLTenantStore) Get(ctx context.Context, id string) (*Tenant, error) {
	query := `SELECT id, name, owner_user_id, calendar_preference FROM tenants WHERE id = ?`
	var t Tenant
	err := s.db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.OwnerUserID, &t.Preference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Groups ---

type MySQLGroupStore struct {
	db *sql.DB
}

func (s *MySQLGroupStore) GetMany(ctx context.Context, ids []string) ([]*Group, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `SELECT id, tenant_id, name, calendar_preference FROM birthday_groups WHERE id IN (` + placeholders + `)`

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byID := make(map[string]*Group, len(ids))
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.TenantID, &g.Name, &g.Preference); err != nil {
			return nil, err
		}
		byID[g.ID] = &g
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Preserve membership order; missing groups are dropped silently.
	out := make([]*Group, 0, len(ids))
	for _, id := range ids {
		if g, ok := byID[id]; ok {
			out = append(out, g)
		}
	}
	return out, nil
}

// --- Wishlists ---

type MySQLWishlistStore struct {
	db *sql.DB
}

func (s *MySQLWishlistStore) ListByBirthday(ctx context.Context, birthdayID string) ([]*WishlistItem, error) {
	query := `SELECT id, birthday_id, title, priority FROM wishlist_items WHERE birthday_id = ?`
	rows, err := s.db.QueryContext(ctx, query, birthdayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*WishlistItem
	for rows.Next() {
		var w WishlistItem
		if err := rows.Scan(&w.ID, &w.BirthdayID, &w.Title, &w.Priority); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// --- Users ---

type MySQLUserStore struct {
	db *sql.DB
}

func (s *MySQLUserStore) Get(ctx context.Context, id string) (*User, error) {
	query := `SELECT id, email, calendar_id, bulk_sync_active FROM users WHERE id = ?`
	var u User
	var calendarID sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Email, &calendarID, &u.BulkSyncActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.CalendarID = calendarID.String
	return &u, nil
}

func (s *MySQLUserStore) SetBulkSyncActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET bulk_sync_active = ? WHERE id = ?`, active, id)
	return err
}

// --- Credentials ---

type MySQLCredentialStore struct {
	db    *sql.DB
	users *MySQLUserStore
}

func (s *MySQLCredentialStore) GetValidToken(ctx context.Context, userID string) (string, error) {
	query := `SELECT access_token, expires_at, revoked FROM user_credentials WHERE user_id = ?`
	var token string
	var expiresAt time.Time
	var revoked bool
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&token, &expiresAt, &revoked)
	if err == sql.ErrNoRows {
		return "", ErrNotConnected
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemporary, err)
	}
	if revoked {
		return "", ErrRevoked
	}
	if time.Now().After(expiresAt) {
		// Refresh is owned by the auth collaborator; an expired row here means
		// the refresher has not caught up yet.
		return "", ErrTemporary
	}
	return token, nil
}

func (s *MySQLCredentialStore) GetTargetCalendarID(ctx context.Context, userID string) (string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", nil
	}
	return u.CalendarID, nil
}

// --- Jobs ---

type MySQLJobStore struct {
	db *database.Database
}

func (s *MySQLJobStore) Create(ctx context.Context, job *SyncJob) error {
	query := `INSERT INTO sync_jobs (id, user_id, total_items, processed_items, errors, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := s.db.DB.ExecContext(ctx, query,
		job.ID, job.UserID, job.TotalItems, job.ProcessedItems, toJSON(job.Errors), job.Status, now, now)
	return err
}

func (s *MySQLJobStore) Get(ctx context.Context, id string) (*SyncJob, error) {
	query := `SELECT id, user_id, total_items, processed_items, errors, status, created_at, updated_at
		FROM sync_jobs WHERE id = ?`
	var job SyncJob
	var errs sql.NullString
	err := s.db.DB.QueryRowContext(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.TotalItems, &job.ProcessedItems, &errs, &job.Status,
		&job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	fromJSON(errs, &job.Errors)
	return &job, nil
}

func (s *MySQLJobStore) AddProgress(ctx context.Context, id string, errMessage string) (*SyncJob, error) {
	// Chunk workers report in concurrently; the read-modify-write of the error
	// list needs the row lock.
	err := s.db.ExecTx(ctx, func(tx *sql.Tx) error {
		var errs sql.NullString
		if err := tx.QueryRowContext(ctx, `SELECT errors FROM sync_jobs WHERE id = ? FOR UPDATE`, id).Scan(&errs); err != nil {
			return err
		}
		var errList []string
		fromJSON(errs, &errList)
		if errMessage != "" {
			errList = append(errList, errMessage)
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE sync_jobs SET processed_items = processed_items + 1, errors = ?, updated_at = ? WHERE id = ?`,
			toJSON(errList), time.Now().UTC(), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

func (s *MySQLJobStore) Complete(ctx context.Context, id string) error {
	_, err := s.db.DB.ExecContext(ctx,
		`UPDATE sync_jobs SET status = ?, updated_at = ? WHERE id = ?`, JobCompleted, time.Now().UTC(), id)
	return err
}

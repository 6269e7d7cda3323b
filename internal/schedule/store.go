package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"thorn/internal/config"
)

// Store manages schedule persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the schedule database under the configured
// data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "schedule.db"))
}

// OpenPath opens the schedule database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Insert persists a new entry. The entry's CreatedAt and UpdatedAt are set to
// the current time.
func (s *Store) Insert(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return errors.New("entry is nil")
	}
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	recipientsJSON, err := marshalRecipients(entry.Recipients)
	if err != nil {
		return err
	}
	warnJSON, err := marshalWarnings(entry.WarnBefore)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO schedule_entries (
            id, title, body, kind, status, recipients_json, fire_at,
            interval_seconds, reset_word, warn_before_json, warned_through,
            dispatch_attempts, last_error, created_at, updated_at, sent_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Title,
		entry.Body,
		entry.Kind,
		entry.Status,
		recipientsJSON,
		entry.FireAt.UTC().Format(time.RFC3339Nano),
		int64(entry.Interval/time.Second),
		entry.ResetWord,
		warnJSON,
		entry.WarnedThrough,
		entry.DispatchAttempts,
		nullableString(entry.LastError),
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		nullableTime(entry.SentAt),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetByID fetches an entry by identifier. It returns nil when no entry
// exists.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM schedule_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// List returns entries filtered by status set (or all entries when no status
// is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entryColumns + ` FROM schedule_entries`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Pending returns all pending entries ordered by deadline.
func (s *Store) Pending(ctx context.Context) ([]*Entry, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+entryColumns+` FROM schedule_entries WHERE status = ? ORDER BY fire_at, id`,
		StatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending entries: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkSent transitions a pending entry to sent. It returns false when the
// entry was not pending anymore, which means another actor got there first.
func (s *Store) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedule_entries
         SET status = ?, sent_at = ?, last_error = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusSent,
		sentAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Cancel transitions a pending entry to cancelled. It returns false when the
// entry was already terminal.
func (s *Store) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedule_entries SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCancelled,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("cancel entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Abandon transitions a pending entry to cancelled while recording the error
// that exhausted its dispatch attempts.
func (s *Store) Abandon(ctx context.Context, id, reason string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedule_entries SET status = ?, last_error = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCancelled,
		nullableString(reason),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("abandon entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Rearm moves a pending entry's deadline forward and clears per-cycle state:
// warning progress, dispatch attempts, and the last error.
func (s *Store) Rearm(ctx context.Context, id string, fireAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedule_entries
         SET fire_at = ?, warned_through = 0, dispatch_attempts = 0,
             last_error = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		fireAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("rearm entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RecordDispatchFailure increments a pending entry's attempt counter and
// stores the failure message.
func (s *Store) RecordDispatchFailure(ctx context.Context, id, message string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedule_entries
         SET dispatch_attempts = dispatch_attempts + 1, last_error = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		nullableString(message),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("record dispatch failure: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// MarkWarned records that warnings up to warnedThrough have been delivered
// for the entry's current arm cycle. The counter only moves forward.
func (s *Store) MarkWarned(ctx context.Context, id string, warnedThrough int) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE schedule_entries
         SET warned_through = ?, updated_at = ?
         WHERE id = ? AND status = ? AND warned_through < ?`,
		warnedThrough,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
		warnedThrough,
	)
	if err != nil {
		return false, fmt.Errorf("mark warned: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of entries grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM schedule_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("schedule stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

const entryColumns = "id, title, body, kind, status, recipients_json, fire_at, interval_seconds, reset_word, warn_before_json, warned_through, dispatch_attempts, last_error, created_at, updated_at, sent_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id              string
		title           string
		body            string
		kindStr         string
		statusStr       string
		recipientsRaw   sql.NullString
		fireAtRaw       string
		intervalSeconds int64
		resetWord       string
		warnRaw         sql.NullString
		warnedThrough   int
		attempts        int
		lastError       sql.NullString
		createdRaw      string
		updatedRaw      string
		sentRaw         sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&body,
		&kindStr,
		&statusStr,
		&recipientsRaw,
		&fireAtRaw,
		&intervalSeconds,
		&resetWord,
		&warnRaw,
		&warnedThrough,
		&attempts,
		&lastError,
		&createdRaw,
		&updatedRaw,
		&sentRaw,
	); err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:               id,
		Title:            title,
		Body:             body,
		Kind:             Kind(kindStr),
		Status:           Status(statusStr),
		Interval:         time.Duration(intervalSeconds) * time.Second,
		ResetWord:        resetWord,
		WarnedThrough:    warnedThrough,
		DispatchAttempts: attempts,
		LastError:        lastError.String,
	}

	if recipientsRaw.Valid && recipientsRaw.String != "" {
		if err := json.Unmarshal([]byte(recipientsRaw.String), &entry.Recipients); err != nil {
			return nil, fmt.Errorf("decode recipients for %s: %w", id, err)
		}
	}
	if warnRaw.Valid && warnRaw.String != "" {
		var seconds []int64
		if err := json.Unmarshal([]byte(warnRaw.String), &seconds); err != nil {
			return nil, fmt.Errorf("decode warnings for %s: %w", id, err)
		}
		entry.WarnBefore = make([]time.Duration, len(seconds))
		for i, sec := range seconds {
			entry.WarnBefore[i] = time.Duration(sec) * time.Second
		}
	}

	fireAt, err := parseTimeString(fireAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parse fire_at for %s: %w", id, err)
	}
	entry.FireAt = fireAt

	if created, err := parseTimeString(createdRaw); err == nil {
		entry.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	if sentRaw.Valid {
		if sent, err := parseTimeString(sentRaw.String); err == nil {
			entry.SentAt = &sent
		}
	}
	return entry, nil
}

func marshalRecipients(recipients []string) (any, error) {
	if len(recipients) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(recipients)
	if err != nil {
		return nil, fmt.Errorf("marshal recipients: %w", err)
	}
	return string(data), nil
}

func marshalWarnings(warnings []time.Duration) (any, error) {
	if len(warnings) == 0 {
		return nil, nil
	}
	seconds := make([]int64, len(warnings))
	for i, warning := range warnings {
		seconds[i] = int64(warning / time.Second)
	}
	data, err := json.Marshal(seconds)
	if err != nil {
		return nil, fmt.Errorf("marshal warnings: %w", err)
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

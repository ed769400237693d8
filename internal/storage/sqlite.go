package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yourname/babysleep/internal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sleep_entries (
	id         TEXT PRIMARY KEY,
	baby_id    TEXT NOT NULL,
	type       TEXT NOT NULL CHECK (type IN ('nap', 'night')),
	start_time TEXT NOT NULL,
	start_ms   INTEGER NOT NULL,
	end_time   TEXT,
	entry_date TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sleep_entries_baby_date ON sleep_entries (baby_id, entry_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sleep_entries_one_active ON sleep_entries (baby_id) WHERE end_time IS NULL;
`

const sqliteColumns = `id, baby_id, type, start_time, end_time, entry_date`

// SQLiteStorage is the embedded local-only backend.
type SQLiteStorage struct {
	db     *sql.DB
	logger internal.Logger
}

func NewSQLiteStorage(ctx context.Context, path string, logger internal.Logger) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: create data dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Errorf("failed to open sqlite database: %v", err)
		return nil, err
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL;", "PRAGMA busy_timeout=5000;"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("storage: %s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		logger.Errorf("failed to migrate sqlite schema: %v", err)
		return nil, err
	}
	return &SQLiteStorage{db: db, logger: logger}, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatEnd(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteEntry(row rowScanner) (internal.SleepEntry, error) {
	var (
		e          internal.SleepEntry
		typ, start string
		end        sql.NullString
	)
	if err := row.Scan(&e.ID, &e.BabyID, &typ, &start, &end, &e.Date); err != nil {
		return internal.SleepEntry{}, err
	}
	e.Type = internal.SleepType(typ)
	st, err := time.Parse(time.RFC3339Nano, start)
	if err != nil {
		return internal.SleepEntry{}, fmt.Errorf("storage: entry %s start_time: %w", e.ID, err)
	}
	e.StartTime = st
	if end.Valid {
		et, err := time.Parse(time.RFC3339Nano, end.String)
		if err != nil {
			return internal.SleepEntry{}, fmt.Errorf("storage: entry %s end_time: %w", e.ID, err)
		}
		e.EndTime = &et
	}
	return e, nil
}

// mapSQLiteError reports a violation of idx_sleep_entries_one_active as
// ErrActiveSleepExists. The unique index is on baby_id alone.
func mapSQLiteError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	if se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "sleep_entries.baby_id") {
		return ErrActiveSleepExists
	}
	return err
}

// --- EntryStore ---
func (s *SQLiteStorage) Create(ctx context.Context, entry internal.SleepEntry) (internal.SleepEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Date = internal.DateOf(entry.StartTime)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sleep_entries (id, baby_id, type, start_time, start_ms, end_time, entry_date) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.BabyID, string(entry.Type), formatTime(entry.StartTime), entry.StartTime.UnixMilli(), formatEnd(entry.EndTime), entry.Date)
	if err != nil {
		s.logger.Errorf("failed to insert sleep entry: %v", err)
		return internal.SleepEntry{}, mapSQLiteError(err)
	}
	return entry.Clone(), nil
}

// Update reads and rewrites the entry in one transaction so concurrent
// patches to different fields are not lost.
func (s *SQLiteStorage) Update(ctx context.Context, id string, patch internal.EntryPatch) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	current, err := getSQLiteEntry(ctx, tx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	current.Apply(patch)
	res, err := tx.ExecContext(ctx,
		`UPDATE sleep_entries SET type = ?, start_time = ?, start_ms = ?, end_time = ?, entry_date = ? WHERE id = ?`,
		string(current.Type), formatTime(current.StartTime), current.StartTime.UnixMilli(), formatEnd(current.EndTime), current.Date, id)
	if err != nil {
		s.logger.Errorf("failed to update sleep entry %s: %v", id, err)
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		s.logger.Errorf("failed to commit update of sleep entry %s: %v", id, err)
		return false, mapSQLiteError(err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sleep_entries WHERE id = ?`, id); err != nil {
		s.logger.Errorf("failed to delete sleep entry %s: %v", id, err)
		return err
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getSQLiteEntry(ctx context.Context, q rowQuerier, id string) (internal.SleepEntry, error) {
	e, err := scanSQLiteEntry(q.QueryRowContext(ctx, `SELECT `+sqliteColumns+` FROM sleep_entries WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return internal.SleepEntry{}, ErrNotFound
	}
	return e, err
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (internal.SleepEntry, error) {
	return getSQLiteEntry(ctx, s.db, id)
}

func (s *SQLiteStorage) ListForBaby(ctx context.Context, babyID string) ([]internal.SleepEntry, error) {
	return s.query(ctx, `SELECT `+sqliteColumns+` FROM sleep_entries WHERE baby_id = ? ORDER BY start_ms, id`, babyID)
}

func (s *SQLiteStorage) ListForDate(ctx context.Context, babyID, date string) ([]internal.SleepEntry, error) {
	return s.query(ctx, `SELECT `+sqliteColumns+` FROM sleep_entries WHERE baby_id = ? AND entry_date = ? ORDER BY start_ms, id`, babyID, date)
}

func (s *SQLiteStorage) query(ctx context.Context, q string, args ...any) ([]internal.SleepEntry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.logger.Errorf("failed to query sleep entries: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []internal.SleepEntry{}
	for rows.Next() {
		e, err := scanSQLiteEntry(rows)
		if err != nil {
			s.logger.Errorf("failed to scan sleep entry: %v", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Compile-time assertions ---
var _ EntryStore = (*SQLiteStorage)(nil)

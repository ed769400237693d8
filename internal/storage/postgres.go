package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/yourname/babysleep/internal"
)

// PostgresSchema is applied on startup. The partial unique index keeps one
// sleep in progress per baby; the exclusion constraint rejects overlapping
// intervals written by concurrent caregivers.
const PostgresSchema = `
CREATE EXTENSION IF NOT EXISTS btree_gist;
CREATE TABLE IF NOT EXISTS sleep_entries (
	id         TEXT PRIMARY KEY,
	baby_id    TEXT NOT NULL,
	type       TEXT NOT NULL CHECK (type IN ('nap', 'night')),
	start_time TIMESTAMPTZ NOT NULL,
	end_time   TIMESTAMPTZ,
	entry_date TEXT NOT NULL,
	CONSTRAINT sleep_entries_no_overlap EXCLUDE USING gist (
		baby_id WITH =,
		tstzrange(start_time, COALESCE(end_time, 'infinity'::timestamptz), '[)') WITH &&
	)
);
CREATE INDEX IF NOT EXISTS idx_sleep_entries_baby_date ON sleep_entries (baby_id, entry_date);
CREATE UNIQUE INDEX IF NOT EXISTS idx_sleep_entries_one_active ON sleep_entries (baby_id) WHERE end_time IS NULL;
`

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

const pgColumns = `id, baby_id, type, start_time, end_time, entry_date`

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(ctx context.Context, dsn string, logger internal.Logger) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if _, err := pool.Exec(ctx, PostgresSchema); err != nil {
		pool.Close()
		logger.Errorf("failed to migrate postgres schema: %v", err)
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() error {
	p.pool.Close()
	return nil
}

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if pgErr.ConstraintName == "idx_sleep_entries_one_active" {
				return ErrActiveSleepExists
			}
		case pgExclusionViolation:
			return ErrOverlap
		}
	}
	return err
}

func scanPgEntry(row pgx.Row) (internal.SleepEntry, error) {
	var (
		e   internal.SleepEntry
		typ string
	)
	if err := row.Scan(&e.ID, &e.BabyID, &typ, &e.StartTime, &e.EndTime, &e.Date); err != nil {
		return internal.SleepEntry{}, err
	}
	e.Type = internal.SleepType(typ)
	return e, nil
}

// --- EntryStore ---
func (p *PostgresStorage) Create(ctx context.Context, entry internal.SleepEntry) (internal.SleepEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Date = internal.DateOf(entry.StartTime)
	_, err := p.pool.Exec(ctx, `INSERT INTO sleep_entries (id, baby_id, type, start_time, end_time, entry_date) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.BabyID, string(entry.Type), entry.StartTime, entry.EndTime, entry.Date)
	if err != nil {
		p.logger.Errorf("failed to insert sleep entry: %v", err)
		return internal.SleepEntry{}, mapPgError(err)
	}
	return entry.Clone(), nil
}

// Update locks the row for the read-modify-write so concurrent patches to
// different fields are not lost.
func (p *PostgresStorage) Update(ctx context.Context, id string, patch internal.EntryPatch) (bool, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	current, err := scanPgEntry(tx.QueryRow(ctx, `SELECT `+pgColumns+` FROM sleep_entries WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	current.Apply(patch)
	tag, err := tx.Exec(ctx, `UPDATE sleep_entries SET type = $1, start_time = $2, end_time = $3, entry_date = $4 WHERE id = $5`,
		string(current.Type), current.StartTime, current.EndTime, current.Date, id)
	if err != nil {
		p.logger.Errorf("failed to update sleep entry %s: %v", id, err)
		return false, mapPgError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		p.logger.Errorf("failed to commit update of sleep entry %s: %v", id, err)
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (p *PostgresStorage) Delete(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sleep_entries WHERE id = $1`, id); err != nil {
		p.logger.Errorf("failed to delete sleep entry %s: %v", id, err)
		return err
	}
	return nil
}

func (p *PostgresStorage) Get(ctx context.Context, id string) (internal.SleepEntry, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+pgColumns+` FROM sleep_entries WHERE id = $1`, id)
	e, err := scanPgEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return internal.SleepEntry{}, ErrNotFound
	}
	return e, err
}

func (p *PostgresStorage) ListForBaby(ctx context.Context, babyID string) ([]internal.SleepEntry, error) {
	return p.query(ctx, `SELECT `+pgColumns+` FROM sleep_entries WHERE baby_id = $1 ORDER BY start_time, id`, babyID)
}

func (p *PostgresStorage) ListForDate(ctx context.Context, babyID, date string) ([]internal.SleepEntry, error) {
	return p.query(ctx, `SELECT `+pgColumns+` FROM sleep_entries WHERE baby_id = $1 AND entry_date = $2 ORDER BY start_time, id`, babyID, date)
}

func (p *PostgresStorage) query(ctx context.Context, q string, args ...any) ([]internal.SleepEntry, error) {
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		p.logger.Errorf("failed to query sleep entries: %v", err)
		return nil, err
	}
	defer rows.Close()

	entries := []internal.SleepEntry{}
	for rows.Next() {
		e, err := scanPgEntry(rows)
		if err != nil {
			p.logger.Errorf("failed to scan sleep entry: %v", err)
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Compile-time assertions ---
var _ EntryStore = (*PostgresStorage)(nil)

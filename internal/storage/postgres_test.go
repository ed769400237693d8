package storage

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/babysleep/internal"
)

func newPostgresStore(t *testing.T) *PostgresStorage {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	s, err := NewPostgresStorage(context.Background(), dsn, testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStorage_Contract(t *testing.T) {
	runEntryStoreContract(t, func(t *testing.T) EntryStore { return newPostgresStore(t) })
}

func TestPostgresStorage_RejectsOverlap(t *testing.T) {
	ctx := context.Background()
	s := newPostgresStore(t)
	baby := uuid.NewString()
	_, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T11:00"))
	require.NoError(t, err)

	_, err = s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T10:30", "2024-01-10T11:30"))
	assert.ErrorIs(t, err, ErrOverlap)

	// Adjacent intervals do not overlap.
	_, err = s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T11:00", "2024-01-10T11:30"))
	assert.NoError(t, err)
}

func TestMapPgError(t *testing.T) {
	active := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "idx_sleep_entries_one_active"}
	pkey := &pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "sleep_entries_pkey"}
	overlap := &pgconn.PgError{Code: pgExclusionViolation, ConstraintName: "sleep_entries_no_overlap"}
	other := errors.New("connection reset")

	assert.ErrorIs(t, mapPgError(active), ErrActiveSleepExists)
	assert.ErrorIs(t, mapPgError(overlap), ErrOverlap)
	assert.Same(t, pkey, mapPgError(pkey))
	assert.Equal(t, other, mapPgError(other))
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/babysleep/internal"
	"go.uber.org/zap/zaptest"
)

func testLogger(t *testing.T) internal.Logger {
	return internal.NewZapLogger(zaptest.NewLogger(t).Sugar())
}

func newFileStore(t *testing.T) *FileStorage {
	t.Helper()
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "data", "entries.json"), testLogger(t))
	require.NoError(t, err)
	return s
}

func TestFileStorage_Contract(t *testing.T) {
	runEntryStoreContract(t, func(t *testing.T) EntryStore { return newFileStore(t) })
}

func TestFileStorage_ReloadsFromDisk(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "entries.json")

	s, err := NewFileStorage(path, testLogger(t))
	require.NoError(t, err)
	nap, err := s.Create(ctx, newEntry("baby-1", internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	require.NoError(t, err)
	night, err := s.Create(ctx, newEntry("baby-1", internal.SleepTypeNight, "2024-01-10T19:00", ""))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewFileStorage(path, testLogger(t))
	require.NoError(t, err)
	all, err := reopened.ListForBaby(ctx, "baby-1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assertSameEntry(t, nap, all[0])
	assertSameEntry(t, night, all[1])

	// The open entry survives the reload and still blocks a second one.
	_, err = reopened.Create(ctx, newEntry("baby-1", internal.SleepTypeNap, "2024-01-11T09:00", ""))
	assert.ErrorIs(t, err, ErrActiveSleepExists)
}

func TestFileStorage_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	s, err := NewFileStorage(path, testLogger(t))
	require.NoError(t, err)
	all, err := s.ListForBaby(context.Background(), "baby-1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStorage_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewFileStorage(path, testLogger(t))
	assert.Error(t, err)
}

func TestFileStorage_RollsBackFailedWrites(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	kept, err := s.Create(ctx, newEntry("baby-1", internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	require.NoError(t, err)

	// Point the store at a directory that does not exist so every flush fails.
	good := s.file
	s.file = filepath.Join(t.TempDir(), "missing", "entries.json")

	_, err = s.Create(ctx, newEntry("baby-1", internal.SleepTypeNap, "2024-01-10T13:00", ""))
	require.Error(t, err)

	end := clock("2024-01-10T11:00")
	ok, err := s.Update(ctx, kept.ID, internal.EntryPatch{EndTime: &end})
	require.Error(t, err)
	assert.False(t, ok)

	require.Error(t, s.Delete(ctx, kept.ID))

	all, err := s.ListForBaby(ctx, "baby-1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assertSameEntry(t, kept, all[0])

	// Once the disk is back the same writes go through.
	s.file = good
	created, err := s.Create(ctx, newEntry("baby-1", internal.SleepTypeNap, "2024-01-10T13:00", ""))
	require.NoError(t, err)
	assert.True(t, created.IsActive())
}

func TestFileStorage_HonorsCancelledContext(t *testing.T) {
	s := newFileStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, newEntry("baby-1", internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
	assert.ErrorIs(t, err, context.Canceled)
}

package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourname/babysleep/internal"
)

func clock(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func newEntry(babyID string, typ internal.SleepType, start, end string) internal.SleepEntry {
	e := internal.SleepEntry{BabyID: babyID, Type: typ, StartTime: clock(start)}
	if end != "" {
		t := clock(end)
		e.EndTime = &t
	}
	return e
}

// assertSameEntry compares entries by instant; backends may hand times back
// in a different location.
func assertSameEntry(t *testing.T, want, got internal.SleepEntry) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.BabyID, got.BabyID)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Date, got.Date)
	assert.True(t, want.StartTime.Equal(got.StartTime), "start %s != %s", want.StartTime, got.StartTime)
	if want.EndTime == nil {
		assert.Nil(t, got.EndTime)
		return
	}
	if assert.NotNil(t, got.EndTime) {
		assert.True(t, want.EndTime.Equal(*got.EndTime), "end %s != %s", want.EndTime, got.EndTime)
	}
}

func ids(entries []internal.SleepEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

// runEntryStoreContract exercises the behavior every backend shares.
func runEntryStoreContract(t *testing.T, open func(t *testing.T) EntryStore) {
	ctx := context.Background()

	t.Run("CreateAssignsIDAndDate", func(t *testing.T) {
		s := open(t)
		baby := uuid.NewString()
		in := newEntry(baby, internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30")
		in.Date = "1999-01-01"

		created, err := s.Create(ctx, in)
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.Equal(t, "2024-01-10", created.Date)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assertSameEntry(t, created, got)
	})

	t.Run("CreateKeepsGivenID", func(t *testing.T) {
		s := open(t)
		in := newEntry(uuid.NewString(), internal.SleepTypeNight, "2024-01-10T20:00", "2024-01-11T06:00")
		in.ID = uuid.NewString()

		created, err := s.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, in.ID, created.ID)

		_, err = s.Create(ctx, in)
		assert.Error(t, err)
	})

	t.Run("ListForDateFiltersAndSorts", func(t *testing.T) {
		s := open(t)
		baby := uuid.NewString()
		late, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T14:00", "2024-01-10T15:00"))
		require.NoError(t, err)
		early, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T09:00", "2024-01-10T09:45"))
		require.NoError(t, err)
		night, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNight, "2024-01-10T19:30", "2024-01-11T06:30"))
		require.NoError(t, err)
		next, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-11T10:00", "2024-01-11T11:00"))
		require.NoError(t, err)
		_, err = s.Create(ctx, newEntry(uuid.NewString(), internal.SleepTypeNap, "2024-01-10T09:00", "2024-01-10T09:45"))
		require.NoError(t, err)

		day, err := s.ListForDate(ctx, baby, "2024-01-10")
		require.NoError(t, err)
		assert.Equal(t, []string{early.ID, late.ID, night.ID}, ids(day))

		all, err := s.ListForBaby(ctx, baby)
		require.NoError(t, err)
		assert.Equal(t, []string{early.ID, late.ID, night.ID, next.ID}, ids(all))

		empty, err := s.ListForDate(ctx, baby, "2024-02-01")
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("UpdateRecomputesDate", func(t *testing.T) {
		s := open(t)
		baby := uuid.NewString()
		created, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
		require.NoError(t, err)

		start, end := clock("2024-01-11T09:00"), clock("2024-01-11T09:30")
		night := internal.SleepTypeNight
		ok, err := s.Update(ctx, created.ID, internal.EntryPatch{Type: &night, StartTime: &start, EndTime: &end})
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assertSameEntry(t, internal.SleepEntry{
			ID: created.ID, BabyID: baby, Type: night, StartTime: start, EndTime: &end, Date: "2024-01-11",
		}, got)

		moved, err := s.ListForDate(ctx, baby, "2024-01-10")
		require.NoError(t, err)
		assert.Empty(t, moved)
	})

	t.Run("UpdateEndKeepsDate", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, newEntry(uuid.NewString(), internal.SleepTypeNight, "2024-01-10T20:00", ""))
		require.NoError(t, err)

		end := clock("2024-01-11T06:45")
		ok, err := s.Update(ctx, created.ID, internal.EntryPatch{EndTime: &end})
		require.NoError(t, err)
		require.True(t, ok)

		got, err := s.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-01-10", got.Date)
		require.NotNil(t, got.EndTime)
		assert.True(t, end.Equal(*got.EndTime))
	})

	t.Run("ConcurrentPatchesBothApply", func(t *testing.T) {
		s := open(t)
		baby := uuid.NewString()
		for i := 0; i < 10; i++ {
			day := clock("2024-01-10T10:00").AddDate(0, 0, i)
			created, err := s.Create(ctx, internal.SleepEntry{BabyID: baby, Type: internal.SleepTypeNap, StartTime: day})
			require.NoError(t, err)

			night := internal.SleepTypeNight
			end := day.Add(45 * time.Minute)
			patches := []internal.EntryPatch{{Type: &night}, {EndTime: &end}}

			var wg sync.WaitGroup
			errs := make(chan error, len(patches))
			for _, patch := range patches {
				wg.Add(1)
				go func(patch internal.EntryPatch) {
					defer wg.Done()
					if _, err := s.Update(ctx, created.ID, patch); err != nil {
						errs <- err
					}
				}(patch)
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := s.Get(ctx, created.ID)
			require.NoError(t, err)
			assert.Equal(t, internal.SleepTypeNight, got.Type, "round %d", i)
			if assert.NotNil(t, got.EndTime, "round %d", i) {
				assert.True(t, end.Equal(*got.EndTime), "round %d", i)
			}
		}
	})

	t.Run("UpdateUnknownID", func(t *testing.T) {
		s := open(t)
		end := clock("2024-01-10T10:00")
		ok, err := s.Update(ctx, uuid.NewString(), internal.EntryPatch{EndTime: &end})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteIsIdempotent", func(t *testing.T) {
		s := open(t)
		created, err := s.Create(ctx, newEntry(uuid.NewString(), internal.SleepTypeNap, "2024-01-10T10:00", "2024-01-10T10:30"))
		require.NoError(t, err)

		require.NoError(t, s.Delete(ctx, created.ID))
		require.NoError(t, s.Delete(ctx, created.ID))

		_, err = s.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("OneActiveSleepPerBaby", func(t *testing.T) {
		s := open(t)
		baby := uuid.NewString()
		_, err := s.Create(ctx, newEntry(baby, internal.SleepTypeNap, "2024-01-10T10:00", ""))
		require.NoError(t, err)

		_, err = s.Create(ctx, newEntry(baby, internal.SleepTypeNight, "2024-01-10T19:00", ""))
		require.Error(t, err)
		assert.True(t, isConflict(err), "unexpected error: %v", err)

		other, err := s.Create(ctx, newEntry(uuid.NewString(), internal.SleepTypeNap, "2024-01-10T10:00", ""))
		require.NoError(t, err)
		assert.True(t, other.IsActive())

		all, err := s.ListForBaby(ctx, baby)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
}

// isConflict accepts either rejection; postgres may report two open entries
// through its overlap constraint first.
func isConflict(err error) bool {
	return errors.Is(err, ErrActiveSleepExists) || errors.Is(err, ErrOverlap)
}

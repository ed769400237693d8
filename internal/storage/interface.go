package storage

import (
	"context"
	"errors"

	"github.com/yourname/babysleep/internal"
)

var (
	ErrNotFound          = errors.New("storage: entry not found")
	ErrActiveSleepExists = errors.New("storage: baby already has a sleep in progress")
	ErrOverlap           = errors.New("storage: entry overlaps an existing entry")
)

// EntryStore owns the canonical sleep entries. Implementations recompute
// SleepEntry.Date from StartTime on every write that supplies StartTime and
// never leave a failed write partially visible.
type EntryStore interface {
	Create(ctx context.Context, entry internal.SleepEntry) (internal.SleepEntry, error)
	Update(ctx context.Context, id string, patch internal.EntryPatch) (bool, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (internal.SleepEntry, error)
	ListForBaby(ctx context.Context, babyID string) ([]internal.SleepEntry, error)
	// ListForDate returns the entries whose Date equals date, ascending by StartTime.
	ListForDate(ctx context.Context, babyID, date string) ([]internal.SleepEntry, error)
	Close() error
}

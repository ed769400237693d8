package service

import (
	"time"

	"github.com/yourname/babysleep/internal"
)

// FindCollision returns the first entry whose interval overlaps
// [start, end). A nil end, on the candidate or on an entry, means the sleep
// is still running and is treated as ending at now. Intervals are half-open,
// so an entry that ends exactly when the candidate starts does not collide.
// The entry with id excludeID is skipped so an entry can be edited without
// colliding with itself.
func FindCollision(start time.Time, end *time.Time, entries []internal.SleepEntry, excludeID string, now time.Time) *internal.SleepEntry {
	candidateEnd := now
	if end != nil {
		candidateEnd = *end
	}
	for i := range entries {
		e := entries[i]
		if excludeID != "" && e.ID == excludeID {
			continue
		}
		if start.Before(e.EffectiveEnd(now)) && candidateEnd.After(e.StartTime) {
			hit := e.Clone()
			return &hit
		}
	}
	return nil
}

package service

import (
	"time"

	"github.com/yourname/babysleep/internal"
)

// ShouldPromptMissingBedtime reports whether the caregiver should be asked
// about a bedtime that was never logged for last night. It is a check over
// what is visible now; remembering a dismissal is up to the caller.
func ShouldPromptMissingBedtime(entries []internal.SleepEntry, activeSleep *internal.SleepEntry, now time.Time) bool {
	if len(entries) == 0 {
		return false
	}
	if activeSleep != nil {
		return false
	}

	loc := now.Location()
	today := now.Format(internal.DateLayout)
	tomorrow := now.AddDate(0, 0, 1).Format(internal.DateLayout)
	dayOf := func(t time.Time) string { return t.In(loc).Format(internal.DateLayout) }

	for _, e := range entries {
		if e.IsActive() {
			return false
		}
		switch e.Type {
		case internal.SleepTypeNight:
			if end := dayOf(*e.EndTime); end == today || end == tomorrow {
				return false
			}
		case internal.SleepTypeNap:
			if dayOf(e.StartTime) == today || dayOf(*e.EndTime) == today {
				return false
			}
		}
	}
	return true
}

package service

import (
	"time"

	"github.com/yourname/babysleep/internal"
)

// AwakeState is the derived "is the baby asleep, and for how long awake"
// view over a snapshot of entries.
type AwakeState struct {
	ActiveSleep        *internal.SleepEntry `json:"activeSleep"`
	AwakeMinutes       *int                 `json:"awakeMinutes"`
	LastCompletedSleep *internal.SleepEntry `json:"lastCompletedSleep"`
	// OpenEntries counts entries without an end. More than one is a broken
	// invariant.
	OpenEntries int `json:"-"`
}

func (s AwakeState) Asleep() bool { return s.ActiveSleep != nil }

// Inconsistent reports more than one sleep in progress.
func (s AwakeState) Inconsistent() bool { return s.OpenEntries > 1 }

// DeriveAwakeState computes the current state from every entry of a baby.
// When several entries are open the most recently started one is active.
func DeriveAwakeState(entries []internal.SleepEntry, now time.Time) AwakeState {
	var state AwakeState
	for i := range entries {
		e := entries[i]
		if e.IsActive() {
			state.OpenEntries++
			if state.ActiveSleep == nil || e.StartTime.After(state.ActiveSleep.StartTime) {
				active := e.Clone()
				state.ActiveSleep = &active
			}
			continue
		}
		if state.LastCompletedSleep == nil || e.EndTime.After(*state.LastCompletedSleep.EndTime) {
			last := e.Clone()
			state.LastCompletedSleep = &last
		}
	}

	if state.ActiveSleep == nil && state.LastCompletedSleep != nil {
		minutes := int(now.Sub(*state.LastCompletedSleep.EndTime) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		state.AwakeMinutes = &minutes
	}
	return state
}

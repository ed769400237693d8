package service

import (
	"time"

	"github.com/yourname/babysleep/internal"
)

const clockLayout = "2006-01-02T15:04"

func at(s string) time.Time {
	t, err := time.ParseInLocation(clockLayout, s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(t time.Time) *time.Time { return &t }

func entry(id string, typ internal.SleepType, start, end string) internal.SleepEntry {
	e := internal.SleepEntry{
		ID:        id,
		BabyID:    "baby-1",
		Type:      typ,
		StartTime: at(start),
	}
	if end != "" {
		e.EndTime = ptr(at(end))
	}
	e.Date = internal.DateOf(e.StartTime)
	return e
}

func nap(id, start, end string) internal.SleepEntry {
	return entry(id, internal.SleepTypeNap, start, end)
}

func night(id, start, end string) internal.SleepEntry {
	return entry(id, internal.SleepTypeNight, start, end)
}

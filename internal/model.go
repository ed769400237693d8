package internal

import "time"

// DateLayout is the calendar-day format entries are bucketed by.
const DateLayout = "2006-01-02"

type SleepType string

const (
	SleepTypeNap   SleepType = "nap"
	SleepTypeNight SleepType = "night"
)

func (t SleepType) Valid() bool {
	return t == SleepTypeNap || t == SleepTypeNight
}

// Clock is the injectable time source.
type Clock func() time.Time

type Caregiver struct {
	ID    string `json:"id"`
	Token string `json:"token"`
	Name  string `json:"name"`
}

// SleepEntry is a single nap or night sleep. A nil EndTime means the sleep is
// still in progress.
type SleepEntry struct {
	ID        string     `json:"id"`
	BabyID    string     `json:"babyId"`
	Type      SleepType  `json:"type"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
	Date      string     `json:"date"`
}

// EntryPatch is a partial update. Nil fields are left untouched.
type EntryPatch struct {
	Type      *SleepType
	StartTime *time.Time
	EndTime   *time.Time
}

func (e SleepEntry) IsActive() bool { return e.EndTime == nil }

// EffectiveEnd returns EndTime, or now for an entry still in progress.
func (e SleepEntry) EffectiveEnd(now time.Time) time.Time {
	if e.EndTime == nil {
		return now
	}
	return *e.EndTime
}

// Clone returns a copy that shares no pointers with e.
func (e SleepEntry) Clone() SleepEntry {
	if e.EndTime != nil {
		end := *e.EndTime
		e.EndTime = &end
	}
	return e
}

// Apply merges p into e. Date is recomputed whenever StartTime is written.
func (e *SleepEntry) Apply(p EntryPatch) {
	if p.Type != nil {
		e.Type = *p.Type
	}
	if p.StartTime != nil {
		e.StartTime = *p.StartTime
		e.Date = DateOf(e.StartTime)
	}
	if p.EndTime != nil {
		end := *p.EndTime
		e.EndTime = &end
	}
}

// DateOf formats t as a calendar day in t's own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

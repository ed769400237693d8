package service

import (
	"sort"
	"time"

	"github.com/yourname/babysleep/internal"
)

type TimelineKind string

const (
	KindBedtime      TimelineKind = "bedtime"
	KindNap          TimelineKind = "nap"
	KindWakeUp       TimelineKind = "wakeup"
	KindWakeWindow   TimelineKind = "wake-window"
	KindNightSummary TimelineKind = "night-sleep-summary"
)

// sortNudge places a synthetic item just below the marker it belongs to.
const sortNudge = time.Millisecond

// Render order for items sharing a sort key. A sleep starting the instant
// the baby woke up is listed above the wake-up.
var kindRank = map[TimelineKind]int{
	KindBedtime:      0,
	KindNap:          1,
	KindWakeWindow:   2,
	KindWakeUp:       3,
	KindNightSummary: 4,
}

// TimelineItem is one row of the daily feed. SortKey is unix milliseconds.
type TimelineItem struct {
	Kind            TimelineKind         `json:"kind"`
	SortKey         int64                `json:"sortKey"`
	Entry           *internal.SleepEntry `json:"entry,omitempty"`
	NapNumber       int                  `json:"napNumber,omitempty"`
	DurationMinutes int                  `json:"durationMinutes,omitempty"`
	From            *time.Time           `json:"from,omitempty"`
	To              *time.Time           `json:"to,omitempty"`
}

// sleepEvent is a point in the day that starts and/or ends an awake period.
type sleepEvent struct {
	at    time.Time
	sleep *time.Time
	wake  *time.Time
}

// BuildTimeline reconstructs the feed for selectedDate, newest first.
//
// dayEntries are the entries attributed to selectedDate. allEntries is
// scanned for night sleeps that started on an earlier day but ended on
// selectedDate: their wake-up and night summary belong to this day, and the
// wake-up opens the first wake window. Calendar days are compared in
// selectedDate's location.
func BuildTimeline(dayEntries, allEntries []internal.SleepEntry, selectedDate time.Time) []TimelineItem {
	loc := selectedDate.Location()
	day := selectedDate.Format(internal.DateLayout)

	var naps, bedtimes []internal.SleepEntry
	for _, e := range dayEntries {
		switch e.Type {
		case internal.SleepTypeNap:
			naps = append(naps, e.Clone())
		case internal.SleepTypeNight:
			bedtimes = append(bedtimes, e.Clone())
		}
	}
	sortByStart(naps)
	sortByStart(bedtimes)

	var (
		items  []TimelineItem
		events []sleepEvent
	)

	// Naps are numbered by their current order, so an earlier nap logged
	// later renumbers the rest.
	for i := range naps {
		nap := naps[i]
		items = append(items, TimelineItem{
			Kind:            KindNap,
			SortKey:         sortKey(nap.StartTime),
			Entry:           &nap,
			NapNumber:       i + 1,
			DurationMinutes: entryMinutes(nap),
		})
		events = append(events, sleepEvent{at: nap.StartTime, sleep: &nap.StartTime, wake: nap.EndTime})
	}
	for i := range bedtimes {
		bed := bedtimes[i]
		items = append(items, TimelineItem{
			Kind:    KindBedtime,
			SortKey: sortKey(bed.StartTime),
			Entry:   &bed,
		})
		events = append(events, sleepEvent{at: bed.StartTime, sleep: &bed.StartTime})
	}

	for _, e := range allEntries {
		if e.Type != internal.SleepTypeNight || e.EndTime == nil {
			continue
		}
		if e.EndTime.In(loc).Format(internal.DateLayout) != day {
			continue
		}
		night := e.Clone()
		wake := *night.EndTime
		items = append(items,
			TimelineItem{
				Kind:    KindWakeUp,
				SortKey: sortKey(wake),
				Entry:   &night,
			},
			TimelineItem{
				Kind:            KindNightSummary,
				SortKey:         sortKey(wake.Add(-sortNudge)),
				Entry:           &night,
				DurationMinutes: minutesBetween(night.StartTime, wake),
				From:            &night.StartTime,
				To:              night.EndTime,
			},
		)
		events = append(events, sleepEvent{at: wake, wake: &wake})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		return events[i].sleep == nil && events[j].sleep != nil
	})
	for i := 1; i < len(events); i++ {
		prev, next := events[i-1], events[i]
		if prev.wake == nil || next.sleep == nil {
			continue
		}
		gap := minutesBetween(*prev.wake, *next.sleep)
		if gap <= 0 {
			continue
		}
		from, to := *prev.wake, *next.sleep
		items = append(items, TimelineItem{
			Kind:            KindWakeWindow,
			SortKey:         sortKey(to.Add(-sortNudge)),
			DurationMinutes: gap,
			From:            &from,
			To:              &to,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].SortKey != items[j].SortKey {
			return items[i].SortKey > items[j].SortKey
		}
		return kindRank[items[i].Kind] < kindRank[items[j].Kind]
	})
	// A nap starting the minute the baby woke up shares the wake-up's
	// instant. Keys stay unique by stepping each tie below its neighbour.
	for i := 1; i < len(items); i++ {
		if items[i].SortKey >= items[i-1].SortKey {
			items[i].SortKey = items[i-1].SortKey - sortNudge.Milliseconds()
		}
	}
	return items
}

func sortByStart(entries []internal.SleepEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartTime.Before(entries[j].StartTime)
	})
}

func sortKey(t time.Time) int64 {
	return t.UnixMilli()
}

func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}

func entryMinutes(e internal.SleepEntry) int {
	if e.EndTime == nil {
		return 0
	}
	return minutesBetween(e.StartTime, *e.EndTime)
}

package service

import (
	"time"

	"github.com/yourname/babysleep/internal"
)

// Duration policy, in minutes.
const (
	NapWarnMinutes   = 240
	NapMaxMinutes    = 300
	NightWarnMinutes = 780
	NightMaxMinutes  = 840

	minutesPerDay = 24 * 60
)

type Severity string

const (
	SeverityNone  Severity = ""
	SeverityWarn  Severity = "warn"
	SeverityBlock Severity = "block"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonSameStartEnd       Reason = "same_start_end"
	ReasonNapTooLong         Reason = "nap_exceeds_max"
	ReasonNapUnusuallyLong   Reason = "nap_unusually_long"
	ReasonNapCrossesMidnight Reason = "nap_crosses_midnight"
	ReasonNightTooLong       Reason = "night_exceeds_max"
	ReasonNightUnusuallyLong Reason = "night_unusually_long"
	ReasonUnknownType        Reason = "unknown_type"
	ReasonEndBeforeStart     Reason = "end_before_start"
)

var reasonMessages = map[Reason]string{
	ReasonSameStartEnd:       "same start and end time",
	ReasonNapTooLong:         "exceeds 5 hours",
	ReasonNapUnusuallyLong:   "unusually long nap",
	ReasonNapCrossesMidnight: "crosses midnight",
	ReasonNightTooLong:       "exceeds 14 hours",
	ReasonNightUnusuallyLong: "unusually long night sleep",
	ReasonUnknownType:        "unknown sleep type",
	ReasonEndBeforeStart:     "end time is more than a day before start time",
}

// Message is the human readable form of r.
func (r Reason) Message() string {
	return reasonMessages[r]
}

type ValidationResult struct {
	OK       bool     `json:"ok"`
	Severity Severity `json:"severity,omitempty"`
	Reason   Reason   `json:"reason,omitempty"`
	Minutes  int      `json:"minutes,omitempty"`
}

func (r ValidationResult) Blocked() bool { return r.Severity == SeverityBlock }
func (r ValidationResult) Warning() bool { return r.Severity == SeverityWarn }

func allow(minutes int) ValidationResult {
	return ValidationResult{OK: true, Minutes: minutes}
}

func warnWith(reason Reason, minutes int) ValidationResult {
	return ValidationResult{OK: true, Severity: SeverityWarn, Reason: reason, Minutes: minutes}
}

func blockWith(reason Reason, minutes int) ValidationResult {
	return ValidationResult{OK: false, Severity: SeverityBlock, Reason: reason, Minutes: minutes}
}

// NormalizeEnd reads an end earlier than start, by less than a day, as the
// same clock time on the following day. Any other end is returned as is.
func NormalizeEnd(start time.Time, end *time.Time) *time.Time {
	if end == nil || !end.Before(start) || start.Sub(*end) >= 24*time.Hour {
		return end
	}
	next := end.Add(24 * time.Hour)
	return &next
}

// ValidateInterval applies the per-type duration policy. An end before the
// start is read as the next day's clock time. An open interval is always OK.
func ValidateInterval(typ internal.SleepType, start time.Time, end *time.Time) ValidationResult {
	if !typ.Valid() {
		return blockWith(ReasonUnknownType, 0)
	}
	if end == nil {
		return allow(0)
	}

	minutes := int(end.Sub(start) / time.Minute)
	wrapped := false
	if minutes < 0 {
		minutes += minutesPerDay
		wrapped = true
	}
	if minutes < 0 {
		return blockWith(ReasonEndBeforeStart, minutes)
	}
	if minutes == 0 || minutes == minutesPerDay {
		return blockWith(ReasonSameStartEnd, minutes)
	}

	switch typ {
	case internal.SleepTypeNap:
		crossesMidnight := wrapped || internal.DateOf(start) != internal.DateOf(end.In(start.Location()))
		switch {
		case minutes > NapMaxMinutes:
			return blockWith(ReasonNapTooLong, minutes)
		case minutes > NapWarnMinutes:
			return warnWith(ReasonNapUnusuallyLong, minutes)
		case crossesMidnight:
			return warnWith(ReasonNapCrossesMidnight, minutes)
		}
	case internal.SleepTypeNight:
		switch {
		case minutes > NightMaxMinutes:
			return blockWith(ReasonNightTooLong, minutes)
		case minutes > NightWarnMinutes:
			return warnWith(ReasonNightUnusuallyLong, minutes)
		}
	}
	return allow(minutes)
}

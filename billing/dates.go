/*
dates.go - Calendar-safe date utilities

PURPOSE:
  All calendar arithmetic for the engine lives here: day counting, month
  keys, month ranges, and contract-end computation with the month-end
  rollover rule.

TIMEZONE SAFETY:
  Date is a time-free calendar date. Every value is normalized to UTC
  midnight in one canonical place (normalize). Nothing in this package
  ever consults the local timezone.

MONTH-END RULE:
  Contract ends for MONTH durations follow an asymmetric rule: a start on
  the genuine last day of a month (day number >= 29) reads as "whole
  months", so Jan 31 + 1 month = Feb 28 and a leap-year Feb 29 + 1 month
  = Mar 31. Ordinary starts read as "same day next month, minus one":
  Jan 15 + 1 month = Feb 14. This is a fixed business rule, reproduced
  exactly.
*/
package billing

import (
	"fmt"
	"time"
)

// MaxScheduleMonths caps how many months a single contract schedule may
// span. A range longer than this is truncated, never iterated further.
const MaxScheduleMonths = 36

// monthKeyLayout is the canonical "YYYY-MM" format for month keys.
const monthKeyLayout = "2006-01"

// dateLayout is the canonical wire/storage format for calendar dates.
const dateLayout = "2006-01-02"

// =============================================================================
// DATE - Time-free calendar date
// =============================================================================

// Date is a calendar date with day granularity, always normalized to UTC
// midnight. The zero value is "no date".
type Date struct {
	t time.Time
}

// NewDate constructs a Date from year/month/day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates any instant to its UTC calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, m, d)
}

// ParseDate parses the canonical "YYYY-MM-DD" form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Today returns the current UTC calendar date.
func Today() Date { return DateOf(time.Now()) }

// Comparison
func (d Date) Before(o Date) bool        { return d.t.Before(o.t) }
func (d Date) After(o Date) bool         { return d.t.After(o.t) }
func (d Date) Equal(o Date) bool         { return d.t.Equal(o.t) }
func (d Date) BeforeOrEqual(o Date) bool { return !d.t.After(o.t) }
func (d Date) AfterOrEqual(o Date) bool  { return !d.t.Before(o.t) }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

func (d Date) String() string { return d.t.Format(dateLayout) }

// MaxDate returns the later of two dates.
func MaxDate(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// MinDate returns the earlier of two dates.
func MinDate(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysInMonth returns the length of the given calendar month.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsLastOfMonth reports whether the date is the last day of its month.
func (d Date) IsLastOfMonth() bool {
	return d.Day() == DaysInMonth(d.Year(), d.Month())
}

// =============================================================================
// DAY COUNTING
// =============================================================================

// DaysBetween returns the inclusive day count from from to to.
// Returns 0 when to is before from.
func DaysBetween(from, to Date) int {
	if to.Before(from) {
		return 0
	}
	return int(to.t.Sub(from.t).Hours()/24) + 1
}

// =============================================================================
// MONTH KEYS AND RANGES
// =============================================================================

// MonthKey derives the "YYYY-MM" key for the month containing d.
func MonthKey(d Date) string { return d.t.Format(monthKeyLayout) }

// MonthPeriod describes one calendar month of a schedule.
type MonthPeriod struct {
	Key   string // "YYYY-MM"
	Year  int
	Month time.Month
	Label string // e.g. "January 2025"
	Start Date
	End   Date
}

// MonthOf returns the month descriptor containing d.
func MonthOf(d Date) MonthPeriod {
	return monthPeriod(d.Year(), d.Month())
}

func monthPeriod(year int, month time.Month) MonthPeriod {
	start := NewDate(year, month, 1)
	return MonthPeriod{
		Key:   MonthKey(start),
		Year:  year,
		Month: month,
		Label: start.t.Format("January 2006"),
		Start: start,
		End:   NewDate(year, month, DaysInMonth(year, month)),
	}
}

// MonthRange returns the ordered months from startKey to endKey inclusive.
// The range is truncated at MaxScheduleMonths. An endKey before startKey
// yields an empty range.
func MonthRange(startKey, endKey string) ([]MonthPeriod, error) {
	start, err := time.Parse(monthKeyLayout, startKey)
	if err != nil {
		return nil, fmt.Errorf("invalid month key %q: %w", startKey, err)
	}
	end, err := time.Parse(monthKeyLayout, endKey)
	if err != nil {
		return nil, fmt.Errorf("invalid month key %q: %w", endKey, err)
	}

	var months []MonthPeriod
	year, month := start.Year(), start.Month()
	for len(months) < MaxScheduleMonths {
		cur := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
		if cur.After(end) {
			break
		}
		months = append(months, monthPeriod(year, month))
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return months, nil
}

// =============================================================================
// CONTRACT END
// =============================================================================

// ContractEnd computes the nominal last billable day of a rental that
// starts on start and runs for durationValue units.
//
// DAY and WEEK durations are plain day arithmetic. MONTH durations apply
// the month-end rule documented in the file header.
func ContractEnd(start Date, durationValue int, unit DurationUnit) Date {
	switch unit {
	case DurationDay:
		return start.AddDays(durationValue - 1)
	case DurationWeek:
		return start.AddDays(durationValue*7 - 1)
	case DurationMonth:
		return contractEndMonths(start, durationValue)
	default:
		return start.AddDays(durationValue - 1)
	}
}

func contractEndMonths(start Date, months int) Date {
	targetYear, targetMonth := start.Year(), start.Month()+time.Month(months)
	for targetMonth > time.December {
		targetMonth -= 12
		targetYear++
	}
	targetLen := DaysInMonth(targetYear, targetMonth)

	// A genuine month-end start (day >= 29 and last of its month) reads as
	// whole months: snap to the target month's last day, no trailing -1.
	// Day 28 in February is NOT a month-end start in this sense.
	if start.Day() >= 29 && start.IsLastOfMonth() {
		return NewDate(targetYear, targetMonth, targetLen)
	}

	day := start.Day()
	if day > targetLen {
		day = targetLen
	}
	return NewDate(targetYear, targetMonth, day).AddDays(-1)
}

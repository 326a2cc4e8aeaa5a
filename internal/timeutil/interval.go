// Package timeutil provides the small amount of interval algebra needed to
// split processing requests into daily and orbital granules.
package timeutil

import (
	"errors"
	"fmt"
	"time"
)

// Interval is a half-open UTC time interval [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// SeriesMode selects which windows of a series are kept.
type SeriesMode int

const (
	// SeriesCovered keeps windows lying entirely inside the interval.
	SeriesCovered SeriesMode = iota
	// SeriesOverlapping keeps every window that overlaps the interval.
	SeriesOverlapping
)

func (m SeriesMode) String() string {
	switch m {
	case SeriesCovered:
		return "covered"
	case SeriesOverlapping:
		return "overlapping"
	default:
		return fmt.Sprintf("SeriesMode(%d)", int(m))
	}
}

// New returns the interval [start, end). Both instants are converted to UTC.
func New(start, end time.Time) (Interval, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return Interval{}, fmt.Errorf("interval end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Day returns the calendar day (UTC) containing t.
func Day(t time.Time) Interval {
	start := StartOfDay(t)
	return Interval{Start: start, End: start.AddDate(0, 0, 1)}
}

// StartOfDay truncates t to UTC midnight.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether a and b fall on the same UTC calendar day.
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

func (i Interval) IsZero() bool {
	return i.Start.IsZero() && i.End.IsZero()
}

// Overlaps reports whether the two intervals share at least one instant.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely inside i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

// Pad widens the interval by before at the start and after at the end.
func (i Interval) Pad(before, after time.Duration) Interval {
	return Interval{Start: i.Start.Add(-before), End: i.End.Add(after)}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}

// Series returns consecutive windows of the given length, starting every step
// on boundaries aligned to step, that relate to i according to mode.
func (i Interval) Series(step, window time.Duration, mode SeriesMode) []Interval {
	if step <= 0 || window <= 0 || !i.End.After(i.Start) {
		return nil
	}

	t := i.Start.Truncate(step)
	for t.Add(-step).Add(window).After(i.Start) {
		t = t.Add(-step)
	}

	var out []Interval
	for ; t.Before(i.End); t = t.Add(step) {
		w := Interval{Start: t, End: t.Add(window)}
		switch mode {
		case SeriesOverlapping:
			if i.Overlaps(w) {
				out = append(out, w)
			}
		default:
			if i.Contains(w) {
				out = append(out, w)
			}
		}
	}
	return out
}

// DayCode formats t as D<yy><jjj>, e.g. D17001 for 2017-01-01.
func DayCode(t time.Time) string {
	return t.UTC().Format("D06002")
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-002",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"D06002",
}

// ParseDate accepts calendar dates (2017-01-01), ordinal dates (2017-001),
// timestamps and day codes (D17001). The result is in UTC.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want YYYY-MM-DD, YYYY-JJJ or DYYJJJ)", s)
}

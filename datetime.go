package calcore

import (
	"time"
)

// TimeSpecKind classifies how a date/time value relates to UTC.
type TimeSpecKind int

const (
	// TimeFloating marks a clock time with no timezone.  Its wall-clock
	// reading never changes under reinterpretation; RFC 5545 section 3.3.5
	// calls this form "floating".
	TimeFloating TimeSpecKind = iota
	// TimeUTC marks an absolute instant, written with a trailing "Z".
	TimeUTC
	// TimeZoned marks a local time in a named timezone, written with a TZID
	// parameter.
	TimeZoned
)

// TimeSpec is the time specification carried by a DateTime: UTC, a named
// timezone, or floating.
type TimeSpec struct {
	Kind TimeSpecKind
	// TZID names the timezone when Kind is TimeZoned, e.g. "Europe/Berlin".
	TZID string
}

// UTCSpec returns the UTC time specification.
func UTCSpec() TimeSpec { return TimeSpec{Kind: TimeUTC} }

// FloatingSpec returns the floating/clock-time specification.
func FloatingSpec() TimeSpec { return TimeSpec{Kind: TimeFloating} }

// ZonedSpec returns a specification for the named timezone.
func ZonedSpec(tzid string) TimeSpec {
	if tzid == "" {
		return FloatingSpec()
	}
	return TimeSpec{Kind: TimeZoned, TZID: tzid}
}

func (s TimeSpec) Equal(o TimeSpec) bool {
	return s.Kind == o.Kind && s.TZID == o.TZID
}

// DateTime is a date or date/time value together with its time
// specification.  The embedded time.Time carries the resolved location: UTC
// for TimeUTC, the resolved zone (or a fixed-offset approximation) for
// TimeZoned, UTC used as a neutral location for TimeFloating.
type DateTime struct {
	Time     time.Time
	Spec     TimeSpec
	DateOnly bool
}

// NewDateTime returns a timed value with the given specification.
func NewDateTime(t time.Time, spec TimeSpec) DateTime {
	return DateTime{Time: t, Spec: spec}
}

// NewDate returns a date-only (all-day) value.  Date-only values are
// floating: the day they name does not shift between timezones.
func NewDate(year int, month time.Month, day int) DateTime {
	return DateTime{
		Time:     time.Date(year, month, day, 0, 0, 0, 0, time.UTC),
		Spec:     FloatingSpec(),
		DateOnly: true,
	}
}

// UTCNow returns the current instant as a UTC DateTime, truncated to whole
// seconds since the wire format carries no sub-second precision.
func UTCNow() DateTime {
	return NewDateTime(time.Now().UTC().Truncate(time.Second), UTCSpec())
}

func (dt DateTime) IsZero() bool {
	return dt.Time.IsZero()
}

// Equal reports whether both values name the same instant (or, for two
// date-only or floating values, the same wall-clock reading).
func (dt DateTime) Equal(o DateTime) bool {
	if dt.DateOnly != o.DateOnly {
		return false
	}
	if dt.DateOnly || (dt.Spec.Kind == TimeFloating && o.Spec.Kind == TimeFloating) {
		return dt.SameWallClock(o)
	}
	if dt.Spec.Kind == TimeFloating || o.Spec.Kind == TimeFloating {
		return false
	}
	return dt.Time.Equal(o.Time)
}

// SameWallClock reports whether both values read the same on a wall clock,
// ignoring their specifications.
func (dt DateTime) SameWallClock(o DateTime) bool {
	y1, mo1, d1 := dt.Time.Date()
	y2, mo2, d2 := o.Time.Date()
	if y1 != y2 || mo1 != mo2 || d1 != d2 {
		return false
	}
	if dt.DateOnly && o.DateOnly {
		return true
	}
	h1, mi1, s1 := dt.Time.Clock()
	h2, mi2, s2 := o.Time.Clock()
	return h1 == h2 && mi1 == mi2 && s1 == s2
}

// SameDay reports whether both values fall on the same calendar date as
// read on their own wall clocks.
func (dt DateTime) SameDay(o DateTime) bool {
	y1, mo1, d1 := dt.Time.Date()
	y2, mo2, d2 := o.Time.Date()
	return y1 == y2 && mo1 == mo2 && d1 == d2
}

// Before orders by instant for absolute values and by wall clock otherwise.
func (dt DateTime) Before(o DateTime) bool {
	return dt.Time.Before(o.Time)
}

// AddDays returns the value shifted by the given number of calendar days,
// preserving the wall-clock time of day.
func (dt DateTime) AddDays(n int) DateTime {
	dt.Time = dt.Time.AddDate(0, 0, n)
	return dt
}

// Add returns the value shifted by d.
func (dt DateTime) Add(d time.Duration) DateTime {
	dt.Time = dt.Time.Add(d)
	return dt
}

// StartOfDay returns a date-only value for the same calendar date.
func (dt DateTime) StartOfDay() DateTime {
	y, m, d := dt.Time.Date()
	return NewDate(y, m, d)
}

// EndOfDay returns the last representable second of the same calendar date,
// keeping the original specification.
func (dt DateTime) EndOfDay() DateTime {
	y, m, d := dt.Time.Date()
	dt.Time = time.Date(y, m, d, 23, 59, 59, 0, dt.Time.Location())
	dt.DateOnly = false
	return dt
}

// UTC returns the value converted to the UTC specification.  Floating and
// date-only values keep their wall-clock reading.
func (dt DateTime) UTC() DateTime {
	switch dt.Spec.Kind {
	case TimeUTC:
		return dt
	case TimeFloating:
		// A floating value has no UTC equivalent; its reading is taken as-is.
		dt.Spec = UTCSpec()
		dt.Time = asWallClock(dt.Time, time.UTC)
		return dt
	default:
		dt.Time = dt.Time.UTC()
		dt.Spec = UTCSpec()
		dt.DateOnly = false
		return dt
	}
}

// Instant returns the value as an absolute time.Time in UTC.  Floating and
// date-only values read their wall clock as UTC.
func (dt DateTime) Instant() time.Time {
	return dt.UTC().Time
}

// asWallClock rebuilds t with the same wall-clock reading in loc.
func asWallClock(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, 0, loc)
}

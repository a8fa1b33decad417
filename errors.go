package calcore

import (
	"errors"
)

var (
	// ErrWrongFormatVersion is returned when a document declares VERSION:1.0,
	// which is the older vCalendar format rather than iCalendar.  Callers that
	// support the legacy format can match this error and retry with a
	// vCalendar parser.
	ErrWrongFormatVersion = errors.New("calendar declares version 1.0; this looks like the older vCalendar format")
	// ErrBadVersion is returned when the VERSION property is missing,
	// unreadable, or names an unsupported version other than 1.0.
	ErrBadVersion = errors.New("calendar VERSION property missing or unsupported")
	// ErrMalformedInput is returned when the input cannot be parsed into a
	// component tree at all.
	ErrMalformedInput = errors.New("malformed calendar data")
	// ErrNoCalendar is returned when the input parses but contains no
	// top-level VCALENDAR component.
	ErrNoCalendar = errors.New("no VCALENDAR component found")
	// ErrTimezoneNotFound is returned by the timezone resolver when a TZID
	// cannot be resolved by any lookup tier.
	ErrTimezoneNotFound = errors.New("timezone not found")
	// ErrReadOnly is returned for mutations attempted on a read-only object.
	ErrReadOnly = errors.New("object is read only")
	// ErrRevisionDecrease is returned when a caller tries to lower an
	// incidence revision.  Revisions only ever grow.
	ErrRevisionDecrease = errors.New("incidence revision must not decrease")
	// ErrEmptyOutput is returned when serialization produced no bytes, so the
	// caller does not silently persist a corrupt document.
	ErrEmptyOutput = errors.New("serialization produced no output")
)

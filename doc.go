// Package calcore is a calendaring data library: an in-memory object model
// for calendar entities (events, to-dos, journals, free/busy records), a
// bidirectional codec for the iCalendar wire format defined in RFC 5545, and
// a scheduling layer that interprets calendar objects as iTIP (RFC 5546)
// transactions.
//
// The three layers build on each other.  The data model (Event, Todo,
// Journal, FreeBusy and their supporting types) knows nothing about the wire
// format.  Decoder and Encoder map documents to and from the model, using
// the TimezoneResolver for TZID references and the Recurrence types for
// RRULE handling.  Scheduler classifies a decoded message by its METHOD and
// applies or rejects it against a Calendar.
//
// Parsing is tolerant at the property level: a single unparseable property
// or an unresolvable timezone degrades that value and records a warning, it
// never discards the rest of the document.  Structural problems (no
// VCALENDAR, missing VERSION, the obsolete 1.0 format) abort the whole
// decode with a distinguished error.
//
// None of the types in this package are safe for concurrent use.  Callers
// sharing a TimezoneResolver or a Calendar across goroutines must serialize
// access themselves.
package calcore

// Version is the library release identifier written into the
// implementation-version marker of serialized calendars.
const Version = "0.4.0"

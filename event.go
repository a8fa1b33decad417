package calcore

// Transparency enumerates the TRANSP property values (RFC 5545 section
// 3.8.2.7).
type Transparency string

const (
	TransparencyOpaque      Transparency = "OPAQUE"
	TransparencyTransparent Transparency = "TRANSPARENT"
)

// Event is a VEVENT payload.
type Event struct {
	Incidence

	DTEnd      DateTime
	HasEndDate bool

	Transparency Transparency
}

// NewEvent returns an event with the given UID, minting one when uid is
// empty.
func NewEvent(uid string) *Event {
	return &Event{
		Incidence:    newIncidence(uid),
		Transparency: TransparencyOpaque,
	}
}

func (e *Event) ObjectBase() *IncidenceBase { return &e.IncidenceBase }

func (e *Event) Clone() Object {
	c := *e
	c.Incidence = e.cloneIncidence()
	return &c
}

// EffectiveEnd resolves the event's end instant.  Events without an explicit
// end use the duration when present; otherwise the start doubles as the end.
// All-day events end at the last included day, not the day after.
func (e *Event) EffectiveEnd() DateTime {
	if e.HasEndDate {
		return e.DTEnd
	}
	if e.HasDuration {
		end := e.Duration.AddTo(e.DTStart)
		if e.AllDay && !e.Duration.IsDaily() {
			end.DateOnly = true
		}
		return end
	}
	return e.DTStart
}

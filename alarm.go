package calcore

import (
	"time"
)

type AlarmType string

// AlarmType enumerates the VALARM ACTION values from RFC 5545 section
// 3.8.6.1.
const (
	AlarmDisplay   AlarmType = "DISPLAY"
	AlarmAudio     AlarmType = "AUDIO"
	AlarmProcedure AlarmType = "PROCEDURE"
	AlarmEmail     AlarmType = "EMAIL"
)

type TriggerRelation string

// TriggerRelation selects which edge of the parent incidence an alarm
// offset is measured from (the RELATED trigger parameter).
const (
	RelatedToStart TriggerRelation = "START"
	RelatedToEnd   TriggerRelation = "END"
)

// Alarm is a reminder attached to an incidence.  The trigger is either an
// absolute time (HasTime) or a signed offset from the incidence start or
// end.
type Alarm struct {
	Type AlarmType
	// Enabled is a vendor extension: producers that predate it never wrote
	// it, so absence reads as enabled.
	Enabled bool

	Time     time.Time
	HasTime  bool
	Offset   Duration
	Related  TriggerRelation
	Repeat   int
	Snooze   Duration

	// Text is the display text, email body or procedure note depending on
	// the alarm type; Summary the email subject.
	Text    string
	Summary string
	// AudioFile and ProgramFile/ProgramArguments carry the type-specific
	// payloads for audio and procedure alarms.
	AudioFile        string
	ProgramFile      string
	ProgramArguments string
	Attendees        []*Attendee
	Attachments      []*Attachment
}

// NewDisplayAlarm returns an enabled display alarm triggering offset before
// the incidence start (negative offsets fire before the start, matching the
// wire convention).
func NewDisplayAlarm(text string, offset Duration) *Alarm {
	return &Alarm{
		Type:    AlarmDisplay,
		Enabled: true,
		Offset:  offset,
		Related: RelatedToStart,
		Text:    text,
	}
}

// Clone returns a deep copy of the alarm.
func (a *Alarm) Clone() *Alarm {
	c := *a
	c.Attendees = nil
	for _, att := range a.Attendees {
		c.Attendees = append(c.Attendees, att.Clone())
	}
	c.Attachments = nil
	for _, att := range a.Attachments {
		c.Attachments = append(c.Attachments, att.Clone())
	}
	return &c
}

// TriggerTime resolves the alarm trigger against the parent's start and end
// instants.
func (a *Alarm) TriggerTime(start, end time.Time) time.Time {
	if a.HasTime {
		return a.Time
	}
	base := start
	if a.Related == RelatedToEnd {
		base = end
	}
	return base.Add(time.Duration(a.Offset.Seconds()) * time.Second)
}

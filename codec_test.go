package calcore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeFixture(t *testing.T, name string) (*MemoryCalendar, *DecodeResult) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	cal := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode(data, cal)
	require.NoError(t, err)
	return cal, res
}

func TestDecodeSimpleEvent(t *testing.T) {
	cal, res := decodeFixture(t, "simple.ics")
	assert.Empty(t, res.Warnings)

	obj := cal.IncidenceByUID("simple-event-1@example.org")
	require.NotNil(t, obj)
	ev, ok := obj.(*Event)
	require.True(t, ok)

	assert.Equal(t, "Team standup", ev.Summary)
	assert.Equal(t, "Daily sync\nBring updates", ev.Description)
	assert.Equal(t, "Room 4", ev.Location)
	assert.Equal(t, []string{"WORK", "MEETING"}, ev.Categories)
	assert.Equal(t, StatusConfirmed, ev.Status)
	assert.Equal(t, 2, ev.Revision)
	assert.Equal(t, time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC), ev.DTStart.Instant())
	require.True(t, ev.HasEndDate)
	assert.Equal(t, time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC), ev.DTEnd.Instant())

	assert.Equal(t, "Alice", ev.Organizer.Name)
	assert.Equal(t, "alice@example.org", ev.Organizer.Email)
	require.Len(t, ev.Attendees, 1)
	assert.Equal(t, "bob@example.org", ev.Attendees[0].Email)
	assert.Equal(t, ParticipationAccepted, ev.Attendees[0].Status)
	assert.True(t, ev.Attendees[0].RSVP)

	require.Len(t, ev.Alarms, 1)
	alarm := ev.Alarms[0]
	assert.Equal(t, AlarmDisplay, alarm.Type)
	assert.Equal(t, "Standup soon", alarm.Text)
	assert.Equal(t, NewDurationSeconds(-10*60), alarm.Offset)
	assert.Equal(t, time.Date(2024, 6, 5, 8, 50, 0, 0, time.UTC),
		alarm.TriggerTime(ev.DTStart.Instant(), ev.DTEnd.Instant()))
}

func TestDecodeZonedEventUsesDocumentTimezone(t *testing.T) {
	cal, _ := decodeFixture(t, "berlin.ics")
	ev := cal.Events()[0]
	assert.Equal(t, TimeZoned, ev.DTStart.Spec.Kind)
	assert.Equal(t, "Europe/Berlin", ev.DTStart.Spec.TZID)
	// 10:00 Berlin summer time is 08:00 UTC.
	assert.Equal(t, time.Date(2024, 7, 15, 8, 0, 0, 0, time.UTC), ev.DTStart.Instant())
}

func TestDecodeAllDayEndIsInclusive(t *testing.T) {
	cal, _ := decodeFixture(t, "allday.ics")
	ev := cal.Events()[0]
	assert.True(t, ev.AllDay)
	assert.True(t, ev.DTStart.DateOnly)
	assert.Equal(t, NewDate(2024, time.June, 1), ev.DTStart)
	require.True(t, ev.HasEndDate)
	// The wire names June 4th exclusively; the model keeps the last
	// included day.
	assert.Equal(t, NewDate(2024, time.June, 3), ev.DTEnd)
}

func TestEncodeAllDayEndIsExclusive(t *testing.T) {
	ev := NewEvent("allday-x")
	ev.DTStart = NewDate(2024, time.June, 1)
	ev.AllDay = true
	ev.DTEnd = NewDate(2024, time.June, 3)
	ev.HasEndDate = true

	cal := NewMemoryCalendar(UTCSpec())
	require.NoError(t, cal.AddIncidence(ev))
	out, err := (&Encoder{}).Encode(cal)
	require.NoError(t, err)
	assert.Contains(t, string(out), "DTEND;VALUE=DATE:20240604")
}

func TestRoundTripEvent(t *testing.T) {
	ev := NewEvent("roundtrip-1")
	ev.DTStart = NewDateTime(time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC), UTCSpec())
	ev.DTEnd = NewDateTime(time.Date(2024, 6, 5, 10, 30, 0, 0, time.UTC), UTCSpec())
	ev.HasEndDate = true
	ev.Summary = "Quarterly review; part 1, final"
	ev.Description = "Line one\nLine two"
	ev.Location = "HQ"
	ev.Status = StatusTentative
	ev.Secrecy = SecrecyConfidential
	ev.Priority = 3
	ev.Revision = 4
	ev.SetCategories([]string{"WORK", "REVIEW"})
	ev.Organizer = Person{Name: "Alice", Email: "alice@example.org"}
	bob := NewAttendee("Bob", "bob@example.org")
	bob.Status = ParticipationTentative
	bob.Role = RoleOptParticipant
	ev.Attendees = []*Attendee{bob}
	rule, err := ParseRecurrenceRule("FREQ=WEEKLY;COUNT=10")
	require.NoError(t, err)
	ev.Recurrence = &Recurrence{RRules: []*RecurrenceRule{rule}}
	ev.SetCustomProperty("X-TEST-FLAG", "on")

	cal := NewMemoryCalendar(UTCSpec())
	require.NoError(t, cal.AddIncidence(ev))
	out, err := (&Encoder{}).Encode(cal)
	require.NoError(t, err)

	back := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode(out, back)
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)

	got, ok := back.IncidenceByUID("roundtrip-1").(*Event)
	require.True(t, ok)

	assert.Equal(t, ev.Summary, got.Summary)
	assert.Equal(t, ev.Description, got.Description)
	assert.Equal(t, ev.Location, got.Location)
	assert.Equal(t, ev.Status, got.Status)
	assert.Equal(t, ev.Secrecy, got.Secrecy)
	assert.Equal(t, ev.Priority, got.Priority)
	assert.Equal(t, ev.Revision, got.Revision)
	assert.Equal(t, ev.Categories, got.Categories)
	assert.True(t, ev.DTStart.Equal(got.DTStart))
	assert.True(t, ev.DTEnd.Equal(got.DTEnd))
	assert.Equal(t, "on", got.CustomPropertyValue("X-TEST-FLAG"))
	require.Len(t, got.Attendees, 1)
	if diff := cmp.Diff(bob, got.Attendees[0]); diff != "" {
		t.Errorf("attendee mismatch (-want +got):\n%s", diff)
	}
	require.NotNil(t, got.Recurrence)
	require.Len(t, got.Recurrence.RRules, 1)
	assert.Equal(t, rule.String(), got.Recurrence.RRules[0].String())
}

func TestDecodeVersionHandling(t *testing.T) {
	cal := NewMemoryCalendar(UTCSpec())

	vcal1 := "BEGIN:VCALENDAR\r\nVERSION:1.0\r\nEND:VCALENDAR\r\n"
	_, err := (&Decoder{}).Decode([]byte(vcal1), cal)
	assert.ErrorIs(t, err, ErrWrongFormatVersion)

	noVersion := "BEGIN:VCALENDAR\r\nPRODID:x\r\nEND:VCALENDAR\r\n"
	_, err = (&Decoder{}).Decode([]byte(noVersion), cal)
	assert.ErrorIs(t, err, ErrBadVersion)

	_, err = (&Decoder{}).Decode([]byte("BEGIN:VEVENT\r\nEND:VEVENT\r\n"), cal)
	assert.ErrorIs(t, err, ErrNoCalendar)
}

func TestDecodeSupersededRevisions(t *testing.T) {
	stream := strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:dup",
		"SEQUENCE:2",
		"SUMMARY:newer",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:dup",
		"SEQUENCE:1",
		"SUMMARY:older",
		"END:VEVENT",
		"END:VCALENDAR",
		"",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode([]byte(stream), cal)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)

	got := IncidenceOf(cal.IncidenceByUID("dup"))
	require.NotNil(t, got)
	assert.Equal(t, "newer", got.Summary)
	assert.Equal(t, 2, got.Revision)
}

func TestDecodeKeepSuperseded(t *testing.T) {
	older := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT", "UID:u", "SEQUENCE:1", "SUMMARY:old", "END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")
	newer := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT", "UID:u", "SEQUENCE:2", "SUMMARY:new", "END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	dec := &Decoder{KeepSuperseded: true}
	_, err := dec.Decode([]byte(older), cal)
	require.NoError(t, err)
	res, err := dec.Decode([]byte(newer), cal)
	require.NoError(t, err)

	require.Len(t, res.Superseded, 1)
	assert.Equal(t, "old", IncidenceOf(res.Superseded[0]).Summary)
	assert.Equal(t, "new", IncidenceOf(cal.IncidenceByUID("u")).Summary)
}

func TestDecodeMalformedPropertySkipsNotAborts(t *testing.T) {
	stream := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:damaged",
		"DTSTART:not-a-date",
		"PRIORITY:banana",
		"SUMMARY:still here",
		"END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode([]byte(stream), cal)
	require.NoError(t, err)
	assert.Len(t, res.Warnings, 2)

	got := IncidenceOf(cal.IncidenceByUID("damaged"))
	require.NotNil(t, got)
	assert.Equal(t, "still here", got.Summary)
	assert.True(t, got.DTStart.IsZero())
	assert.Zero(t, got.Priority)
}

func TestDecodeUnknownTimezoneDegradesToFloating(t *testing.T) {
	stream := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:tzless",
		"DTSTART;TZID=Nowhere/Atlantis:20240605T090000",
		"END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode([]byte(stream), cal)
	require.NoError(t, err)
	assert.NotEmpty(t, res.Warnings)

	ev := cal.Events()[0]
	assert.Equal(t, TimeFloating, ev.DTStart.Spec.Kind)
	assert.Equal(t, time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC), ev.DTStart.Time)
}

func TestDecodeSchedulingIDRemap(t *testing.T) {
	stream := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:organizer-uid",
		"X-CALCORE-REAL-UID:local-uid",
		"SUMMARY:remapped",
		"END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	_, err := (&Decoder{}).Decode([]byte(stream), cal)
	require.NoError(t, err)

	obj := cal.IncidenceByUID("local-uid")
	require.NotNil(t, obj)
	assert.Equal(t, "organizer-uid", obj.ObjectBase().SchedulingID())
	assert.Same(t, obj, cal.IncidenceBySchedulingID("organizer-uid"))
}

func TestEncodeSchedulingIDOnWire(t *testing.T) {
	ev := NewEvent("local-uid")
	ev.SetSchedulingID("organizer-uid")
	cal := NewMemoryCalendar(UTCSpec())
	require.NoError(t, cal.AddIncidence(ev))

	out, err := (&Encoder{}).Encode(cal)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "UID:organizer-uid")
	assert.Contains(t, text, "X-CALCORE-REAL-UID:local-uid")

	back := NewMemoryCalendar(UTCSpec())
	_, err = (&Decoder{}).Decode(out, back)
	require.NoError(t, err)
	require.NotNil(t, back.IncidenceByUID("local-uid"))
}

func TestEncodeEmptyCalendar(t *testing.T) {
	_, err := (&Encoder{}).Encode(NewMemoryCalendar(UTCSpec()))
	assert.ErrorIs(t, err, ErrEmptyOutput)
}

func TestEncodeDeclaresUsedTimezones(t *testing.T) {
	cal, _ := decodeFixture(t, "berlin.ics")
	out, err := (&Encoder{Resolver: NewTimezoneResolver(nil)}).Encode(cal)
	require.NoError(t, err)
	text := string(out)
	assert.Contains(t, text, "BEGIN:VTIMEZONE")
	assert.Contains(t, text, "TZID:Europe/Berlin")
	assert.True(t, strings.Index(text, "BEGIN:VTIMEZONE") < strings.Index(text, "BEGIN:VEVENT"),
		"timezone declarations come before the payload")
}

func TestRoundTripTodo(t *testing.T) {
	td := NewTodo("todo-1")
	td.Summary = "Ship release"
	td.DTDue = NewDateTime(time.Date(2024, 6, 30, 17, 0, 0, 0, time.UTC), UTCSpec())
	td.HasDueDate = true
	td.Priority = 1
	td.PercentComplete = 40

	cal := NewMemoryCalendar(UTCSpec())
	require.NoError(t, cal.AddIncidence(td))
	out, err := (&Encoder{}).Encode(cal)
	require.NoError(t, err)

	back := NewMemoryCalendar(UTCSpec())
	_, err = (&Decoder{}).Decode(out, back)
	require.NoError(t, err)

	got, ok := back.IncidenceByUID("todo-1").(*Todo)
	require.True(t, ok)
	assert.Equal(t, "Ship release", got.Summary)
	require.True(t, got.HasDueDate)
	assert.True(t, td.DTDue.Equal(got.DTDue))
	assert.Equal(t, 40, got.PercentComplete)
}

func TestRoundTripFreeBusy(t *testing.T) {
	fb := NewFreeBusy("fb-1")
	fb.Organizer = Person{Email: "alice@example.org"}
	fb.DTStart = NewDateTime(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), UTCSpec())
	fb.DTEnd = NewDateTime(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), UTCSpec())
	fb.AddPeriod(FreeBusyPeriod{
		Start:    time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC),
		End:      time.Date(2024, 6, 5, 10, 0, 0, 0, time.UTC),
		Type:     FBBusy,
		Summary:  "standup",
		Location: "Room 4",
	})

	out, err := (&Encoder{}).EncodeObjects(MethodPublish, fb)
	require.NoError(t, err)
	assert.Contains(t, string(out), "METHOD:PUBLISH")

	back := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode(out, back)
	require.NoError(t, err)
	assert.Equal(t, MethodPublish, res.Method)
	require.Len(t, res.FreeBusy, 1)

	got := res.FreeBusy[0]
	require.Len(t, got.Periods, 1)
	assert.Equal(t, fb.Periods[0].Start, got.Periods[0].Start)
	assert.Equal(t, fb.Periods[0].End, got.Periods[0].End)
	assert.Equal(t, FBBusy, got.Periods[0].Type)
	assert.Equal(t, "standup", got.Periods[0].Summary)
	assert.Equal(t, "Room 4", got.Periods[0].Location)
}

func TestDecodeExceptionDropsRecurrenceRules(t *testing.T) {
	stream := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT",
		"UID:exception-1",
		"DTSTART:20240605T090000Z",
		"RECURRENCE-ID:20240605T090000Z",
		"RRULE:FREQ=DAILY;COUNT=5",
		"END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	res, err := (&Decoder{}).Decode([]byte(stream), cal)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)

	ev := cal.Events()[0]
	assert.True(t, ev.HasRecurrenceID())
	assert.False(t, ev.Recurs(), "an exception override must not carry its own rules")
}

func TestDecodeMultipleCalendars(t *testing.T) {
	stream := strings.Join([]string{
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT", "UID:first", "SUMMARY:One", "END:VEVENT",
		"END:VCALENDAR",
		"BEGIN:VCALENDAR", "VERSION:2.0",
		"BEGIN:VEVENT", "UID:second", "SUMMARY:Two", "END:VEVENT",
		"END:VCALENDAR", "",
	}, "\r\n")

	cal := NewMemoryCalendar(UTCSpec())
	_, err := (&Decoder{}).Decode([]byte(stream), cal)
	require.NoError(t, err)
	require.Len(t, cal.Events(), 2)
	assert.NotNil(t, cal.IncidenceByUID("first"))
	assert.NotNil(t, cal.IncidenceByUID("second"))
}

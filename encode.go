package calcore

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SerializationOptions control the physical layout of encoded output.
type SerializationOptions struct {
	// MaxLineLength is the folding threshold in octets; zero means 75.
	MaxLineLength int
	// NewLine is the line terminator; empty means CRLF as the format
	// requires.
	NewLine string
}

// Encoder renders calendars and iTIP messages as iCalendar streams.
// The zero value is usable.
type Encoder struct {
	// ProdID overrides the product identifier written to the stream.
	ProdID string
	// Resolver supplies timezone definitions for referenced TZIDs.  A nil
	// resolver gets a fresh one, which still covers tz database zones.
	Resolver *TimezoneResolver
	Opts     SerializationOptions
	// ExtraTimezones are written even when no property references them.
	ExtraTimezones []*Timezone
}

type encodeState struct {
	resolver *TimezoneResolver
	used     map[string]bool
}

// Encode renders every object in cal.  To-dos come first, then events,
// then journals; referenced timezones are declared up front.  An empty
// calendar yields ErrEmptyOutput.
func (e *Encoder) Encode(cal Calendar) ([]byte, error) {
	var objs []Object
	for _, o := range cal.Incidences() {
		if _, ok := o.(*Todo); ok {
			objs = append(objs, o)
		}
	}
	for _, o := range cal.Incidences() {
		if _, ok := o.(*Event); ok {
			objs = append(objs, o)
		}
	}
	for _, o := range cal.Incidences() {
		if _, ok := o.(*Journal); ok {
			objs = append(objs, o)
		}
	}
	if len(objs) == 0 {
		return nil, ErrEmptyOutput
	}
	return e.encode(MethodNone, objs)
}

// EncodeObjects renders the given objects as an iTIP message carrying the
// given method.  MethodNone omits the METHOD property.
func (e *Encoder) EncodeObjects(method Method, objs ...Object) ([]byte, error) {
	if len(objs) == 0 {
		return nil, ErrEmptyOutput
	}
	return e.encode(method, objs)
}

func (e *Encoder) encode(method Method, objs []Object) ([]byte, error) {
	s := &encodeState{resolver: e.Resolver, used: map[string]bool{}}
	if s.resolver == nil {
		s.resolver = NewTimezoneResolver(nil)
	}

	vc := &rawComponent{name: "VCALENDAR"}
	prodID := e.ProdID
	if prodID == "" {
		prodID = "-//sorintus//calcore " + Version + "//EN"
	}
	vc.add("PRODID", prodID)
	vc.add("VERSION", "2.0")
	vc.add("CALSCALE", "GREGORIAN")
	vc.add(xImplVersion, Version)
	if method != MethodNone {
		vc.add("METHOD", string(method))
	}

	var payload []*rawComponent
	for _, o := range objs {
		switch o := o.(type) {
		case *Event:
			payload = append(payload, s.encodeEvent(o))
		case *Todo:
			payload = append(payload, s.encodeTodo(o))
		case *Journal:
			payload = append(payload, s.encodeJournal(o))
		case *FreeBusy:
			payload = append(payload, s.encodeFreeBusy(o))
		}
	}

	for _, z := range e.ExtraTimezones {
		vc.children = append(vc.children, writeVTimezone(z))
		delete(s.used, z.Name)
	}
	tzids := make([]string, 0, len(s.used))
	for tzid := range s.used {
		tzids = append(tzids, tzid)
	}
	sort.Strings(tzids)
	for _, tzid := range tzids {
		z, err := s.resolver.Resolve(tzid)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", tzid, err)
		}
		vc.children = append(vc.children, writeVTimezone(z))
	}
	vc.children = append(vc.children, payload...)

	maxLen := e.Opts.MaxLineLength
	if maxLen == 0 {
		maxLen = 75
	}
	newline := e.Opts.NewLine
	if newline == "" {
		newline = "\r\n"
	}
	var b strings.Builder
	vc.write(&b, maxLen, newline)
	return []byte(b.String()), nil
}

// addDateTime writes a DATE or DATE-TIME property and records any TZID it
// references.
func (s *encodeState) addDateTime(c *rawComponent, name string, dt DateTime) {
	if dt.DateOnly {
		p := c.add(name, dt.Time.Format("20060102"))
		p.setParam("VALUE", "DATE")
		return
	}
	switch dt.Spec.Kind {
	case TimeUTC:
		c.add(name, dt.Time.UTC().Format("20060102T150405Z"))
	case TimeZoned:
		p := c.add(name, dt.Time.Format("20060102T150405"))
		p.setParam("TZID", dt.Spec.TZID)
		s.used[dt.Spec.TZID] = true
	default:
		c.add(name, dt.Time.Format("20060102T150405"))
	}
}

func addUTCStamp(c *rawComponent, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	c.add(name, t.UTC().Format("20060102T150405Z"))
}

func addText(c *rawComponent, name, value string, rich bool) *property {
	if value == "" {
		return nil
	}
	p := c.add(name, EscapeText(value))
	if rich {
		p.setParam(xTextFormat, "HTML")
	}
	return p
}

func (s *encodeState) encodeEvent(ev *Event) *rawComponent {
	c := &rawComponent{name: "VEVENT"}
	s.encodeIncidence(c, &ev.Incidence, false)
	if ev.HasEndDate {
		end := ev.DTEnd
		if end.DateOnly {
			// The wire format wants the day after the last included day.
			end = end.AddDays(1)
		}
		s.addDateTime(c, "DTEND", end)
	} else if ev.HasDuration {
		c.add("DURATION", ev.Duration.String())
	}
	if ev.Transparency == TransparencyTransparent {
		c.add("TRANSP", string(ev.Transparency))
	}
	s.encodeAlarms(c, ev.Alarms)
	return c
}

func (s *encodeState) encodeTodo(td *Todo) *rawComponent {
	c := &rawComponent{name: "VTODO"}
	s.encodeIncidence(c, &td.Incidence, true)
	if td.HasDueDate {
		s.addDateTime(c, "DUE", td.DTDue)
	}
	if td.HasCompletedDate {
		addUTCStamp(c, "COMPLETED", td.Completed)
	}
	if td.PercentComplete > 0 {
		c.add("PERCENT-COMPLETE", strconv.Itoa(td.PercentComplete))
	}
	s.encodeAlarms(c, td.Alarms)
	return c
}

func (s *encodeState) encodeJournal(j *Journal) *rawComponent {
	c := &rawComponent{name: "VJOURNAL"}
	s.encodeIncidence(c, &j.Incidence, false)
	return c
}

func (s *encodeState) encodeFreeBusy(fb *FreeBusy) *rawComponent {
	c := &rawComponent{name: "VFREEBUSY"}
	s.encodeBase(c, &fb.IncidenceBase, false)
	if !fb.DTEnd.IsZero() {
		s.addDateTime(c, "DTEND", fb.DTEnd)
	}
	for _, per := range fb.Periods {
		var val string
		if per.HasDuration {
			val = per.Start.UTC().Format("20060102T150405Z") + "/" + per.Duration.String()
		} else {
			val = per.Start.UTC().Format("20060102T150405Z") + "/" + per.End.UTC().Format("20060102T150405Z")
		}
		p := c.add("FREEBUSY", val)
		if per.Type != FBUnknown {
			p.setParam("FBTYPE", string(per.Type))
		}
		if per.Summary != "" {
			p.setParam("X-SUMMARY", base64.StdEncoding.EncodeToString([]byte(per.Summary)))
		}
		if per.Location != "" {
			p.setParam("X-LOCATION", base64.StdEncoding.EncodeToString([]byte(per.Location)))
		}
	}
	return c
}

// encodeBase writes the fields shared by all payload kinds.  withDuration
// lets kinds without a competing end property emit DURATION here.
func (s *encodeState) encodeBase(c *rawComponent, b *IncidenceBase, withDuration bool) {
	// The wire UID carries the scheduling id; the local identity travels in
	// the extension property when the two diverge.
	c.add("UID", b.SchedulingID())
	if b.SchedulingID() != b.UID {
		c.add(xRealUID, b.UID)
	}
	addUTCStamp(c, "DTSTAMP", time.Now())
	addUTCStamp(c, "LAST-MODIFIED", b.LastModified)
	if !b.DTStart.IsZero() {
		dt := b.DTStart
		if b.AllDay {
			dt.DateOnly = true
		}
		s.addDateTime(c, "DTSTART", dt)
	}
	if withDuration && b.HasDuration {
		c.add("DURATION", b.Duration.String())
	}
	if !b.Organizer.IsEmpty() {
		p := c.add("ORGANIZER", b.Organizer.CalAddress())
		if b.Organizer.Name != "" {
			p.setParam("CN", b.Organizer.Name)
		}
	}
	for _, a := range b.Attendees {
		s.encodeAttendee(c, a)
	}
	for _, cm := range b.Comments {
		addText(c, "COMMENT", cm, false)
	}
	for _, ct := range b.Contacts {
		addText(c, "CONTACT", ct, false)
	}
	if b.URL != "" {
		c.add("URL", b.URL)
	}
	custom := make([]string, 0, len(b.Custom))
	for name := range b.Custom {
		custom = append(custom, name)
	}
	sort.Strings(custom)
	for _, name := range custom {
		cp := b.Custom[name]
		c.add(name, cp.Value)
		if cp.Params != "" {
			// Raw parameter text survives as captured; splice it back in.
			c.props[len(c.props)-1].Name = name + cp.Params
		}
	}
}

func (s *encodeState) encodeIncidence(c *rawComponent, inc *Incidence, withDuration bool) {
	s.encodeBase(c, &inc.IncidenceBase, withDuration)
	addUTCStamp(c, "CREATED", inc.Created)
	if inc.Revision > 0 {
		c.add("SEQUENCE", strconv.Itoa(inc.Revision))
	}
	addText(c, "SUMMARY", inc.Summary, inc.SummaryIsRich)
	addText(c, "DESCRIPTION", inc.Description, inc.DescriptionIsRich)
	addText(c, "LOCATION", inc.Location, inc.LocationIsRich)
	if len(inc.Categories) > 0 {
		escaped := make([]string, len(inc.Categories))
		for i, cat := range inc.Categories {
			escaped[i] = EscapeText(cat)
		}
		c.add("CATEGORIES", strings.Join(escaped, ","))
	}
	switch inc.Status {
	case StatusNone:
	case StatusX:
		if inc.StatusText != "" {
			c.add("STATUS", inc.StatusText)
		}
	default:
		c.add("STATUS", string(inc.Status))
	}
	if inc.Secrecy != "" {
		c.add("CLASS", string(inc.Secrecy))
	}
	if inc.Priority > 0 {
		c.add("PRIORITY", strconv.Itoa(inc.Priority))
	}
	if inc.RelatedToUID != "" {
		addText(c, "RELATED-TO", inc.RelatedToUID, false)
	}
	if !inc.RecurrenceID.IsZero() {
		s.addDateTime(c, "RECURRENCE-ID", inc.RecurrenceID)
		if inc.ThisAndFuture {
			c.prop("RECURRENCE-ID").setParam("RANGE", "THISANDFUTURE")
		}
	}
	if inc.Recurrence != nil {
		for _, rule := range inc.Recurrence.RRules {
			c.add("RRULE", rule.String())
		}
		for _, rule := range inc.Recurrence.ExRules {
			c.add("EXRULE", rule.String())
		}
		for _, rd := range inc.Recurrence.RDates {
			s.addDateTime(c, "RDATE", rd)
		}
		for _, xd := range inc.Recurrence.ExDates {
			s.addDateTime(c, "EXDATE", xd)
		}
	}
	for _, att := range inc.Attachments {
		s.encodeAttachment(c, att)
	}
}

func (s *encodeState) encodeAttendee(c *rawComponent, a *Attendee) {
	p := c.add("ATTENDEE", a.CalAddress())
	if a.Name != "" {
		p.setParam("CN", a.Name)
	}
	if a.RSVP {
		p.setParam("RSVP", "TRUE")
	}
	if a.Status != "" && a.Status != ParticipationNeedsAction {
		p.setParam("PARTSTAT", string(a.Status))
	}
	if a.Role != "" && a.Role != RoleReqParticipant {
		p.setParam("ROLE", string(a.Role))
	}
	if a.Type != "" && a.Type != UserTypeIndividual {
		p.setParam("CUTYPE", string(a.Type))
	}
	if a.Delegate != "" {
		p.setParam("DELEGATED-TO", "mailto:"+a.Delegate)
	}
	if a.Delegator != "" {
		p.setParam("DELEGATED-FROM", "mailto:"+a.Delegator)
	}
	if a.UID != "" {
		p.setParam("X-UID", a.UID)
	}
}

func (s *encodeState) encodeAttachment(c *rawComponent, att *Attachment) {
	var p *property
	if att.Binary {
		p = c.add("ATTACH", base64.StdEncoding.EncodeToString(att.Data))
		p.setParam("VALUE", "BINARY")
		p.setParam("ENCODING", "BASE64")
	} else {
		p = c.add("ATTACH", att.URI)
	}
	if att.MimeType != "" {
		p.setParam("FMTTYPE", att.MimeType)
	}
	if att.Label != "" {
		p.setParam(xAttachLabel, att.Label)
	}
	if att.Local {
		p.setParam(xAttachLocal, "TRUE")
	}
	if att.ShowInline {
		p.setParam(xAttachInline, "TRUE")
	}
}

func (s *encodeState) encodeAlarms(c *rawComponent, alarms []*Alarm) {
	for _, a := range alarms {
		va := &rawComponent{name: "VALARM"}
		switch a.Type {
		case AlarmAudio:
			va.add("ACTION", "AUDIO")
			if a.AudioFile != "" {
				va.add("ATTACH", a.AudioFile)
			}
		case AlarmEmail:
			va.add("ACTION", "EMAIL")
			addText(va, "SUMMARY", a.Summary, false)
			addText(va, "DESCRIPTION", a.Text, false)
			for _, at := range a.Attendees {
				s.encodeAttendee(va, at)
			}
		case AlarmProcedure:
			va.add("ACTION", "PROCEDURE")
			if a.ProgramFile != "" {
				va.add("ATTACH", a.ProgramFile)
			}
			addText(va, "DESCRIPTION", a.ProgramArguments, false)
		default:
			va.add("ACTION", "DISPLAY")
			addText(va, "DESCRIPTION", a.Text, false)
		}
		if a.HasTime {
			p := va.add("TRIGGER", a.Time.UTC().Format("20060102T150405Z"))
			p.setParam("VALUE", "DATE-TIME")
		} else {
			p := va.add("TRIGGER", a.Offset.String())
			if a.Related == RelatedToEnd {
				p.setParam("RELATED", "END")
			}
		}
		if a.Repeat > 0 {
			va.add("REPEAT", strconv.Itoa(a.Repeat))
			va.add("DURATION", a.Snooze.String())
		}
		if !a.Enabled {
			va.add(xAlarmOff, "TRUE")
		}
		for _, att := range a.Attachments {
			s.encodeAttachment(va, att)
		}
		c.children = append(c.children, va)
	}
}

package calcore

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Vendor extension property and parameter names.
const (
	xRealUID      = "X-CALCORE-REAL-UID"
	xTextFormat   = "X-CALCORE-TEXTFORMAT"
	xImplVersion  = "X-CALCORE-IMPLEMENTATION-VERSION"
	xAttachLabel  = "X-CALCORE-LABEL"
	xAttachLocal  = "X-CALCORE-LOCAL"
	xAttachInline = "X-CALCORE-INLINE"
	xAlarmOff     = "X-CALCORE-ALARM-DISABLED"
)

// Decoder parses iCalendar streams into a Calendar.  The zero value is
// usable; a nil Resolver gets a fresh one per call and a nil Log falls
// back to the standard logrus logger.
type Decoder struct {
	Resolver *TimezoneResolver
	Log      logrus.FieldLogger
	// KeepSuperseded collects objects displaced by a newer revision in
	// DecodeResult.Superseded instead of dropping them.
	KeepSuperseded bool
}

// DecodeResult reports what a Decode call did beyond mutating the
// calendar.
type DecodeResult struct {
	// Method is the iTIP method declared by the stream, or MethodNone.
	Method Method
	// Warnings lists properties that were skipped or degraded.  A non-empty
	// list still means the decode succeeded.
	Warnings []string
	// Superseded holds previously stored objects that a newer revision
	// replaced, when Decoder.KeepSuperseded is set.
	Superseded []Object
	// FreeBusy lists the free/busy reports found in the stream.  They are
	// also stored in the calendar.
	FreeBusy []*FreeBusy
}

type decodeState struct {
	resolver *TimezoneResolver
	log      logrus.FieldLogger
	compat   Compat
	res      *DecodeResult
}

func (s *decodeState) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	s.res.Warnings = append(s.res.Warnings, msg)
	s.log.Warn(msg)
}

// Decode parses data and stores the contained incidences in cal.  Damaged
// individual properties are skipped with a warning; structural damage
// (unbalanced components, missing VCALENDAR, wrong VERSION) fails the
// whole decode.
func (d *Decoder) Decode(data []byte, cal Calendar) (*DecodeResult, error) {
	res := &DecodeResult{}
	s := &decodeState{resolver: d.Resolver, log: d.Log, res: res}
	if s.resolver == nil {
		s.resolver = NewTimezoneResolver(d.Log)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}

	top, err := parseRawDocument(newLineScanner(strings.NewReader(decodeInput(data))))
	if err != nil {
		return nil, err
	}
	var cals []*rawComponent
	for _, c := range top {
		if c.name == "VCALENDAR" {
			cals = append(cals, c)
			continue
		}
		// Some exports wrap everything in a non-standard envelope.
		for _, child := range c.children {
			if child.name == "VCALENDAR" {
				cals = append(cals, child)
			}
		}
	}
	if len(cals) == 0 {
		return nil, ErrNoCalendar
	}

	for _, vc := range cals {
		if err := s.decodeCalendar(vc, cal, d.KeepSuperseded); err != nil {
			return nil, err
		}
	}

	// Verify relation targets now that every object is stored.
	for _, o := range cal.Incidences() {
		inc := IncidenceOf(o)
		if inc == nil || inc.RelatedToUID == "" {
			continue
		}
		if cal.IncidenceByUID(inc.RelatedToUID) == nil {
			s.warnf("incidence %s relates to unknown uid %s", inc.UID, inc.RelatedToUID)
		}
	}
	return res, nil
}

func (s *decodeState) decodeCalendar(vc *rawComponent, cal Calendar, keepSuperseded bool) error {
	version := vc.propValue("VERSION")
	switch {
	case version == "":
		return ErrBadVersion
	case strings.HasPrefix(version, "1."):
		return ErrWrongFormatVersion
	case !strings.Contains(version, "2.0"):
		return fmt.Errorf("unsupported version %q: %w", version, ErrBadVersion)
	}

	if m := vc.propValue("METHOD"); m != "" {
		s.res.Method = Method(strings.ToUpper(m))
	}
	s.compat = CompatForProduct(vc.propValue("PRODID"), vc.propValue(xImplVersion))

	// Timezones first so later date/time values resolve against them.
	for _, c := range vc.children {
		if c.name != "VTIMEZONE" {
			continue
		}
		z, err := parseVTimezone(c)
		if err != nil {
			s.warnf("skipping timezone: %v", err)
			continue
		}
		s.resolver.Add(z)
	}

	for _, c := range vc.children {
		var (
			obj Object
			err error
		)
		switch c.name {
		case "VEVENT":
			obj, err = s.decodeEvent(c)
		case "VTODO":
			obj, err = s.decodeTodo(c)
		case "VJOURNAL":
			obj, err = s.decodeJournal(c)
		case "VFREEBUSY":
			fb, ferr := s.decodeFreeBusy(c)
			if ferr == nil {
				s.res.FreeBusy = append(s.res.FreeBusy, fb)
			}
			obj, err = fb, ferr
		case "VTIMEZONE":
			continue
		default:
			s.warnf("skipping unknown component %s", c.name)
			continue
		}
		if err != nil {
			return err
		}
		applyCompat(s.compat, obj)
		s.storeObject(cal, obj, keepSuperseded)
	}
	return nil
}

// storeObject inserts obj unless the calendar already holds the same UID
// at the same or a newer revision.
func (s *decodeState) storeObject(cal Calendar, obj Object, keepSuperseded bool) {
	uid := obj.ObjectBase().UID
	existing := cal.IncidenceByUID(uid)
	if existing != nil && !supersedes(obj, existing) {
		s.warnf("keeping stored revision of %s", uid)
		return
	}
	if existing != nil && keepSuperseded {
		s.res.Superseded = append(s.res.Superseded, existing)
	}
	if err := cal.AddIncidence(obj); err != nil {
		s.warnf("storing %s: %v", uid, err)
	}
}

// supersedes reports whether a is strictly newer than b, by revision and
// then modification time.  An equal revision with an equal timestamp does
// not supersede: a re-sent message must not clobber stored state.
func supersedes(a, b Object) bool {
	ia, ib := IncidenceOf(a), IncidenceOf(b)
	if ia == nil || ib == nil {
		return true
	}
	if ia.Revision != ib.Revision {
		return ia.Revision > ib.Revision
	}
	return ia.LastModified.After(ib.LastModified)
}

func (s *decodeState) decodeEvent(c *rawComponent) (*Event, error) {
	ev := NewEvent(c.propValue("UID"))
	for i := range c.props {
		p := &c.props[i]
		if s.decodeIncidenceProp(&ev.Incidence, p) {
			continue
		}
		switch p.Name {
		case "DTEND":
			dt, allDay, err := s.parseDateTime(p)
			if err != nil {
				s.warnf("event %s: %v", ev.UID, err)
				continue
			}
			if allDay {
				// The wire format names the day after the last included day.
				dt = dt.AddDays(-1)
			}
			ev.DTEnd, ev.HasEndDate = dt, true
		case "TRANSP":
			if strings.EqualFold(p.Value, string(TransparencyTransparent)) {
				ev.Transparency = TransparencyTransparent
			} else {
				ev.Transparency = TransparencyOpaque
			}
		default:
			s.decodeCustomProp(&ev.IncidenceBase, p)
		}
	}
	s.decodeAlarms(&ev.Incidence, c)
	s.finishIncidence(&ev.Incidence)
	return ev, nil
}

func (s *decodeState) decodeTodo(c *rawComponent) (*Todo, error) {
	td := NewTodo(c.propValue("UID"))
	for i := range c.props {
		p := &c.props[i]
		if p.Name == "DTSTART" {
			td.HasStartDate = true
		}
		if s.decodeIncidenceProp(&td.Incidence, p) {
			continue
		}
		switch p.Name {
		case "DUE":
			dt, _, err := s.parseDateTime(p)
			if err != nil {
				s.warnf("todo %s: %v", td.UID, err)
				continue
			}
			td.DTDue, td.HasDueDate = dt, true
		case "COMPLETED":
			if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
				td.Completed, td.HasCompletedDate = t, true
			} else {
				s.warnf("todo %s: bad COMPLETED %q", td.UID, p.Value)
			}
		case "PERCENT-COMPLETE":
			if n, err := strconv.Atoi(p.Value); err == nil && n >= 0 && n <= 100 {
				td.PercentComplete = n
			} else {
				s.warnf("todo %s: bad PERCENT-COMPLETE %q", td.UID, p.Value)
			}
		default:
			s.decodeCustomProp(&td.IncidenceBase, p)
		}
	}
	s.decodeAlarms(&td.Incidence, c)
	s.finishIncidence(&td.Incidence)
	return td, nil
}

func (s *decodeState) decodeJournal(c *rawComponent) (*Journal, error) {
	j := NewJournal(c.propValue("UID"))
	for i := range c.props {
		p := &c.props[i]
		if !s.decodeIncidenceProp(&j.Incidence, p) {
			s.decodeCustomProp(&j.IncidenceBase, p)
		}
	}
	s.finishIncidence(&j.Incidence)
	return j, nil
}

func (s *decodeState) decodeFreeBusy(c *rawComponent) (*FreeBusy, error) {
	fb := NewFreeBusy(c.propValue("UID"))
	for i := range c.props {
		p := &c.props[i]
		if s.decodeBaseProp(&fb.IncidenceBase, p) {
			continue
		}
		switch p.Name {
		case "DTEND":
			dt, _, err := s.parseDateTime(p)
			if err != nil {
				s.warnf("freebusy %s: %v", fb.UID, err)
				continue
			}
			fb.DTEnd = dt
		case "FREEBUSY":
			s.decodeFreeBusyPeriods(fb, p)
		default:
			s.decodeCustomProp(&fb.IncidenceBase, p)
		}
	}
	return fb, nil
}

func (s *decodeState) decodeFreeBusyPeriods(fb *FreeBusy, p *property) {
	fbType := FreeBusyType(strings.ToUpper(p.param("FBTYPE")))
	for _, v := range strings.Split(p.Value, ",") {
		startStr, rest, found := strings.Cut(v, "/")
		if !found {
			s.warnf("freebusy %s: bad period %q", fb.UID, v)
			continue
		}
		start, err := time.Parse("20060102T150405Z", startStr)
		if err != nil {
			s.warnf("freebusy %s: bad period start %q", fb.UID, startStr)
			continue
		}
		per := FreeBusyPeriod{Start: start, Type: fbType}
		if strings.HasPrefix(rest, "P") || strings.HasPrefix(rest, "+") || strings.HasPrefix(rest, "-") {
			dur, err := ParseDuration(rest)
			if err != nil {
				s.warnf("freebusy %s: bad period duration %q", fb.UID, rest)
				continue
			}
			per.HasDuration, per.Duration = true, dur
			per.End = dur.AddTo(NewDateTime(start, UTCSpec())).Instant()
		} else {
			end, err := time.Parse("20060102T150405Z", rest)
			if err != nil {
				s.warnf("freebusy %s: bad period end %q", fb.UID, rest)
				continue
			}
			per.End = end
		}
		if sum := p.param("X-SUMMARY"); sum != "" {
			if b, err := base64.StdEncoding.DecodeString(sum); err == nil {
				per.Summary = string(b)
			}
		}
		if loc := p.param("X-LOCATION"); loc != "" {
			if b, err := base64.StdEncoding.DecodeString(loc); err == nil {
				per.Location = string(b)
			}
		}
		fb.AddPeriod(per)
	}
}

// decodeIncidenceProp handles properties shared by events, to-dos and
// journals, reporting whether the property was consumed.
func (s *decodeState) decodeIncidenceProp(inc *Incidence, p *property) bool {
	if s.decodeBaseProp(&inc.IncidenceBase, p) {
		return true
	}
	switch p.Name {
	case "CREATED":
		if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
			inc.Created = t
		} else {
			s.warnf("incidence %s: bad CREATED %q", inc.UID, p.Value)
		}
	case "SEQUENCE":
		if n, err := strconv.Atoi(p.Value); err == nil && n >= 0 {
			inc.Revision = n
		} else {
			s.warnf("incidence %s: bad SEQUENCE %q", inc.UID, p.Value)
		}
	case "SUMMARY":
		inc.Summary = UnescapeText(p.Value)
		inc.SummaryIsRich = strings.EqualFold(p.param(xTextFormat), "HTML")
	case "DESCRIPTION":
		inc.Description = UnescapeText(p.Value)
		inc.DescriptionIsRich = strings.EqualFold(p.param(xTextFormat), "HTML")
	case "LOCATION":
		inc.Location = UnescapeText(p.Value)
		inc.LocationIsRich = strings.EqualFold(p.param(xTextFormat), "HTML")
	case "CATEGORIES":
		for _, cat := range splitEscaped(p.Value) {
			if cat != "" {
				inc.AddCategory(UnescapeText(cat))
			}
		}
	case "STATUS":
		s.decodeStatus(inc, p.Value)
	case "CLASS":
		switch sec := Secrecy(strings.ToUpper(p.Value)); sec {
		case SecrecyPublic, SecrecyPrivate, SecrecyConfidential:
			inc.Secrecy = sec
		default:
			s.warnf("incidence %s: unknown CLASS %q", inc.UID, p.Value)
		}
	case "PRIORITY":
		if n, err := strconv.Atoi(p.Value); err == nil && n >= 0 && n <= 9 {
			inc.Priority = n
		} else {
			s.warnf("incidence %s: bad PRIORITY %q", inc.UID, p.Value)
		}
	case "RELATED-TO":
		inc.RelatedToUID = UnescapeText(p.Value)
	case "RECURRENCE-ID":
		dt, _, err := s.parseDateTime(p)
		if err != nil {
			s.warnf("incidence %s: %v", inc.UID, err)
			return true
		}
		inc.RecurrenceID = dt
		inc.ThisAndFuture = strings.EqualFold(p.param("RANGE"), "THISANDFUTURE")
	case "RRULE", "EXRULE":
		rule, err := ParseRecurrenceRule(p.Value)
		if err != nil {
			s.warnf("incidence %s: %v", inc.UID, err)
			return true
		}
		if inc.Recurrence == nil {
			inc.Recurrence = &Recurrence{}
		}
		if p.Name == "RRULE" {
			inc.Recurrence.RRules = append(inc.Recurrence.RRules, rule)
		} else {
			inc.Recurrence.ExRules = append(inc.Recurrence.ExRules, rule)
		}
	case "RDATE", "EXDATE":
		if inc.Recurrence == nil {
			inc.Recurrence = &Recurrence{}
		}
		for _, v := range strings.Split(p.Value, ",") {
			one := property{Name: p.Name, Params: p.Params, Value: v}
			dt, _, err := s.parseDateTime(&one)
			if err != nil {
				s.warnf("incidence %s: %v", inc.UID, err)
				continue
			}
			if p.Name == "RDATE" {
				inc.Recurrence.RDates = append(inc.Recurrence.RDates, dt)
			} else {
				inc.Recurrence.ExDates = append(inc.Recurrence.ExDates, dt)
			}
		}
	case "ATTACH":
		if att := s.decodeAttachment(p); att != nil {
			inc.Attachments = append(inc.Attachments, att)
		} else {
			s.warnf("incidence %s: unusable ATTACH", inc.UID)
		}
	default:
		return false
	}
	return true
}

// decodeBaseProp handles properties shared by all payload kinds, reporting
// whether the property was consumed.
func (s *decodeState) decodeBaseProp(b *IncidenceBase, p *property) bool {
	switch p.Name {
	case "UID", "DTSTAMP", "PRODID", "VERSION":
		// UID was consumed up front; the rest carry no model state.
	case "LAST-MODIFIED":
		if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
			b.LastModified = t
		} else {
			s.warnf("incidence %s: bad LAST-MODIFIED %q", b.UID, p.Value)
		}
	case "DTSTART":
		dt, allDay, err := s.parseDateTime(p)
		if err != nil {
			s.warnf("incidence %s: %v", b.UID, err)
			return true
		}
		b.DTStart = dt
		b.AllDay = allDay
	case "DURATION":
		dur, err := ParseDuration(p.Value)
		if err != nil {
			s.warnf("incidence %s: %v", b.UID, err)
			return true
		}
		b.Duration, b.HasDuration = dur, true
	case "ORGANIZER":
		b.Organizer = ParseCalAddress(p.Value, p.param("CN"))
	case "ATTENDEE":
		b.Attendees = append(b.Attendees, s.decodeAttendee(p))
	case "COMMENT":
		b.Comments = append(b.Comments, UnescapeText(p.Value))
	case "CONTACT":
		b.Contacts = append(b.Contacts, UnescapeText(p.Value))
	case "URL":
		b.URL = p.Value
	default:
		return false
	}
	return true
}

// decodeCustomProp stores unrecognized X- properties and warns about
// unrecognized standard ones.
func (s *decodeState) decodeCustomProp(b *IncidenceBase, p *property) {
	if !strings.HasPrefix(p.Name, "X-") {
		s.warnf("incidence %s: skipping unknown property %s", b.UID, p.Name)
		return
	}
	if b.Custom == nil {
		b.Custom = map[string]CustomProperty{}
	}
	b.Custom[p.Name] = CustomProperty{Value: p.Value, Params: rawParamText(p)}
}

// finishIncidence applies the UID remap carried in X-CALCORE-REAL-UID (the
// wire UID was a scheduling id assigned by an organizer, the real local
// identity travels in the extension property) and guards the exception
// invariant: an incidence overriding a single occurrence must not itself
// carry recurrence rules.
func (s *decodeState) finishIncidence(inc *Incidence) {
	if inc.HasRecurrenceID() && inc.Recurrence != nil &&
		(len(inc.Recurrence.RRules) > 0 || len(inc.Recurrence.ExRules) > 0) {
		s.warnf("incidence %s: dropping recurrence rules on an exception override", inc.UID)
		inc.Recurrence.RRules = nil
		inc.Recurrence.ExRules = nil
		if inc.Recurrence.IsEmpty() {
			inc.Recurrence = nil
		}
	}
	cp, ok := inc.Custom[xRealUID]
	if !ok || cp.Value == "" {
		return
	}
	wireUID := inc.UID
	inc.UID = cp.Value
	inc.SetSchedulingID(wireUID)
	delete(inc.Custom, xRealUID)
}

func (s *decodeState) decodeStatus(inc *Incidence, value string) {
	switch st := IncidenceStatus(strings.ToUpper(value)); st {
	case StatusTentative, StatusConfirmed, StatusCompleted, StatusNeedsAction,
		StatusCanceled, StatusInProcess, StatusDraft, StatusFinal:
		inc.Status = st
	case StatusNone:
		inc.Status = StatusNone
	default:
		inc.Status = StatusX
		inc.StatusText = value
	}
}

func (s *decodeState) decodeAttendee(p *property) *Attendee {
	person := ParseCalAddress(p.Value, p.param("CN"))
	a := NewAttendee(person.Name, person.Email)
	a.RSVP = strings.EqualFold(p.param("RSVP"), "TRUE")
	if v := p.param("PARTSTAT"); v != "" {
		a.Status = ParticipationStatus(strings.ToUpper(v))
	}
	if v := p.param("ROLE"); v != "" {
		a.Role = ParticipationRole(strings.ToUpper(v))
	}
	if v := p.param("CUTYPE"); v != "" {
		a.Type = CalendarUserType(strings.ToUpper(v))
	}
	if v := p.param("DELEGATED-TO"); v != "" {
		a.Delegate = strings.TrimPrefix(v, "mailto:")
	}
	if v := p.param("DELEGATED-FROM"); v != "" {
		a.Delegator = strings.TrimPrefix(v, "mailto:")
	}
	if v := p.param("X-UID"); v != "" {
		a.UID = v
	}
	return a
}

func (s *decodeState) decodeAttachment(p *property) *Attachment {
	binary := strings.EqualFold(p.param("VALUE"), "BINARY") ||
		strings.EqualFold(p.param("ENCODING"), "BASE64")
	var att *Attachment
	if binary {
		data, err := base64.StdEncoding.DecodeString(p.Value)
		if err != nil {
			return nil
		}
		att = NewBinaryAttachment(data, p.param("FMTTYPE"))
	} else {
		if p.Value == "" {
			return nil
		}
		att = NewURIAttachment(p.Value, p.param("FMTTYPE"))
	}
	att.Label = p.param(xAttachLabel)
	att.Local = strings.EqualFold(p.param(xAttachLocal), "TRUE")
	att.ShowInline = strings.EqualFold(p.param(xAttachInline), "TRUE")
	return att
}

func (s *decodeState) decodeAlarms(inc *Incidence, c *rawComponent) {
	for _, child := range c.children {
		if child.name != "VALARM" {
			continue
		}
		inc.Alarms = append(inc.Alarms, s.decodeAlarm(inc, child))
	}
}

func (s *decodeState) decodeAlarm(inc *Incidence, c *rawComponent) *Alarm {
	a := NewDisplayAlarm("", Duration{})
	switch action := strings.ToUpper(c.propValue("ACTION")); action {
	case "DISPLAY", "":
		a.Type = AlarmDisplay
	case "AUDIO":
		a.Type = AlarmAudio
	case "EMAIL":
		a.Type = AlarmEmail
	case "PROCEDURE":
		a.Type = AlarmProcedure
	default:
		s.warnf("incidence %s: unknown alarm action %q, treating as display", inc.UID, action)
	}

	if p := c.prop("TRIGGER"); p != nil {
		switch {
		case strings.EqualFold(p.param("VALUE"), "DATE-TIME") || strings.HasSuffix(p.Value, "Z"):
			if t, err := time.Parse("20060102T150405Z", p.Value); err == nil {
				a.Time, a.HasTime = t, true
			} else {
				s.warnf("incidence %s: bad alarm trigger %q", inc.UID, p.Value)
			}
		default:
			if dur, err := ParseDuration(p.Value); err == nil {
				a.Offset = dur
				if strings.EqualFold(p.param("RELATED"), "END") {
					a.Related = RelatedToEnd
				}
			} else {
				s.warnf("incidence %s: bad alarm trigger %q", inc.UID, p.Value)
			}
		}
	}
	a.Text = UnescapeText(c.propValue("DESCRIPTION"))
	a.Summary = UnescapeText(c.propValue("SUMMARY"))
	if n, err := strconv.Atoi(c.propValue("REPEAT")); err == nil {
		a.Repeat = n
	}
	if dur, err := ParseDuration(c.propValue("DURATION")); err == nil {
		a.Snooze = dur
	}
	for i := range c.props {
		p := &c.props[i]
		switch p.Name {
		case "ATTENDEE":
			a.Attendees = append(a.Attendees, s.decodeAttendee(p))
		case "ATTACH":
			switch a.Type {
			case AlarmAudio:
				a.AudioFile = p.Value
			case AlarmProcedure:
				a.ProgramFile = p.Value
			default:
				if att := s.decodeAttachment(p); att != nil {
					a.Attachments = append(a.Attachments, att)
				}
			}
		case xAlarmOff:
			a.Enabled = !strings.EqualFold(p.Value, "TRUE")
		}
	}
	if a.Type == AlarmProcedure {
		a.ProgramArguments = UnescapeText(c.propValue("DESCRIPTION"))
		a.Text = ""
	}
	return a
}

// parseDateTime interprets a DATE or DATE-TIME property value, honoring
// VALUE=DATE and TZID parameters.  An unresolvable TZID degrades to a
// floating reading.
func (s *decodeState) parseDateTime(p *property) (DateTime, bool, error) {
	val := p.Value
	if strings.EqualFold(p.param("VALUE"), "DATE") || len(val) == 8 {
		t, err := time.ParseInLocation("20060102", val, time.UTC)
		if err != nil {
			return DateTime{}, false, fmt.Errorf("%s value %q: %w", p.Name, val, ErrMalformedInput)
		}
		return NewDate(t.Year(), t.Month(), t.Day()), true, nil
	}
	if strings.HasSuffix(val, "Z") {
		t, err := time.Parse("20060102T150405Z", val)
		if err != nil {
			return DateTime{}, false, fmt.Errorf("%s value %q: %w", p.Name, val, ErrMalformedInput)
		}
		return NewDateTime(t, UTCSpec()), false, nil
	}
	wall, err := time.ParseInLocation("20060102T150405", val, time.UTC)
	if err != nil {
		return DateTime{}, false, fmt.Errorf("%s value %q: %w", p.Name, val, ErrMalformedInput)
	}
	tzid := p.param("TZID")
	if tzid == "" {
		return NewDateTime(wall, FloatingSpec()), false, nil
	}
	z, err := s.resolver.Resolve(tzid)
	if err != nil {
		s.warnf("timezone %q not found, treating %s as floating", tzid, p.Name)
		return NewDateTime(wall, FloatingSpec()), false, nil
	}
	loc := z.LocalLocation(wall)
	return NewDateTime(asWallClock(wall, loc), ZonedSpec(tzid)), false, nil
}

// splitEscaped splits a comma-separated value list, honoring backslash
// escapes.
func splitEscaped(s string) []string {
	var out []string
	var cur strings.Builder
	esc := false
	for _, r := range s {
		switch {
		case esc:
			cur.WriteByte('\\')
			cur.WriteRune(r)
			esc = false
		case r == '\\':
			esc = true
		case r == ',':
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	if esc {
		cur.WriteByte('\\')
	}
	out = append(out, cur.String())
	return out
}

// rawParamText renders a property's parameters back to their wire form,
// so unknown parameters on custom properties survive a round trip.
func rawParamText(p *property) string {
	if len(p.Params) == 0 {
		return ""
	}
	clone := property{Name: "X", Params: p.Params}
	var full strings.Builder
	clone.write(&full, 1<<20, "")
	text := full.String()
	// Strip the placeholder name and the trailing colon.
	return strings.TrimSuffix(strings.TrimPrefix(text, "X"), ":")
}

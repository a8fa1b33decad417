package calcore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Frequency enumerates the RECUR FREQ values (RFC 5545 section 3.3.10).
type Frequency string

const (
	FreqSecondly Frequency = "SECONDLY"
	FreqMinutely Frequency = "MINUTELY"
	FreqHourly   Frequency = "HOURLY"
	FreqDaily    Frequency = "DAILY"
	FreqWeekly   Frequency = "WEEKLY"
	FreqMonthly  Frequency = "MONTHLY"
	FreqYearly   Frequency = "YEARLY"
)

// WeekdayPos is a BYDAY entry: a weekday with an optional ordinal.  Pos 0
// means every such weekday; 2 means the second one in the period, -1 the
// last.
type WeekdayPos struct {
	Day time.Weekday
	Pos int
}

// RecurrenceRule is a parsed RECUR value.  Count and Until are mutually
// exclusive; both zero means the rule repeats forever.
type RecurrenceRule struct {
	Frequency Frequency
	// Interval below 2 serializes implicitly as 1.
	Interval int
	Count    int
	Until    DateTime

	WeekStart time.Weekday

	BySecond   []int
	ByMinute   []int
	ByHour     []int
	ByDay      []WeekdayPos
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByMonth    []int
	BySetPos   []int
}

var weekdayTokens = map[string]time.Weekday{
	"SU": time.Sunday, "MO": time.Monday, "TU": time.Tuesday, "WE": time.Wednesday,
	"TH": time.Thursday, "FR": time.Friday, "SA": time.Saturday,
}

var weekdayNames = [7]string{"SU", "MO", "TU", "WE", "TH", "FR", "SA"}

// ParseRecurrenceRule parses a RECUR value such as
// "FREQ=MONTHLY;BYDAY=2TU;COUNT=6".
func ParseRecurrenceRule(value string) (*RecurrenceRule, error) {
	r := &RecurrenceRule{WeekStart: time.Monday}
	seenFreq := false
	for _, part := range strings.Split(value, ";") {
		if part == "" {
			continue
		}
		name, val, found := strings.Cut(part, "=")
		if !found {
			return nil, fmt.Errorf("recurrence rule part %q: %w", part, ErrMalformedInput)
		}
		var err error
		switch strings.ToUpper(name) {
		case "FREQ":
			switch f := Frequency(strings.ToUpper(val)); f {
			case FreqSecondly, FreqMinutely, FreqHourly, FreqDaily, FreqWeekly, FreqMonthly, FreqYearly:
				r.Frequency = f
				seenFreq = true
			default:
				return nil, fmt.Errorf("recurrence frequency %q: %w", val, ErrMalformedInput)
			}
		case "INTERVAL":
			r.Interval, err = strconv.Atoi(val)
		case "COUNT":
			r.Count, err = strconv.Atoi(val)
		case "UNTIL":
			r.Until, err = parseRecurUntil(val)
		case "WKST":
			day, ok := weekdayTokens[strings.ToUpper(val)]
			if !ok {
				return nil, fmt.Errorf("week start %q: %w", val, ErrMalformedInput)
			}
			r.WeekStart = day
		case "BYSECOND":
			r.BySecond, err = parseIntList(val)
		case "BYMINUTE":
			r.ByMinute, err = parseIntList(val)
		case "BYHOUR":
			r.ByHour, err = parseIntList(val)
		case "BYDAY":
			r.ByDay, err = parseByDay(val)
		case "BYMONTHDAY":
			r.ByMonthDay, err = parseIntList(val)
		case "BYYEARDAY":
			r.ByYearDay, err = parseIntList(val)
		case "BYWEEKNO":
			r.ByWeekNo, err = parseIntList(val)
		case "BYMONTH":
			r.ByMonth, err = parseIntList(val)
		case "BYSETPOS":
			r.BySetPos, err = parseIntList(val)
		default:
			// Unknown rule parts are ignored for forward compatibility.
		}
		if err != nil {
			return nil, fmt.Errorf("recurrence rule part %q: %w", part, ErrMalformedInput)
		}
	}
	if !seenFreq {
		return nil, fmt.Errorf("recurrence rule %q lacks FREQ: %w", value, ErrMalformedInput)
	}
	if r.Count != 0 && !r.Until.IsZero() {
		return nil, fmt.Errorf("recurrence rule %q has both COUNT and UNTIL: %w", value, ErrMalformedInput)
	}
	return r, nil
}

func parseRecurUntil(val string) (DateTime, error) {
	if len(val) == 8 {
		t, err := time.ParseInLocation("20060102", val, time.UTC)
		if err != nil {
			return DateTime{}, err
		}
		return DateTime{Time: t, Spec: FloatingSpec(), DateOnly: true}, nil
	}
	if strings.HasSuffix(val, "Z") {
		t, err := time.Parse("20060102T150405Z", val)
		if err != nil {
			return DateTime{}, err
		}
		return NewDateTime(t, UTCSpec()), nil
	}
	t, err := time.ParseInLocation("20060102T150405", val, time.UTC)
	if err != nil {
		return DateTime{}, err
	}
	return NewDateTime(t, FloatingSpec()), nil
}

func parseIntList(val string) ([]int, error) {
	var out []int
	for _, s := range strings.Split(val, ",") {
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func parseByDay(val string) ([]WeekdayPos, error) {
	var out []WeekdayPos
	for _, s := range strings.Split(val, ",") {
		s = strings.ToUpper(strings.TrimSpace(s))
		if len(s) < 2 {
			return nil, fmt.Errorf("bad BYDAY entry %q", s)
		}
		day, ok := weekdayTokens[s[len(s)-2:]]
		if !ok {
			return nil, fmt.Errorf("bad BYDAY entry %q", s)
		}
		pos := 0
		if rest := s[:len(s)-2]; rest != "" {
			var err error
			pos, err = strconv.Atoi(rest)
			if err != nil {
				return nil, fmt.Errorf("bad BYDAY entry %q", s)
			}
		}
		out = append(out, WeekdayPos{Day: day, Pos: pos})
	}
	return out, nil
}

// String renders the rule as a RECUR value suitable for an RRULE property.
func (r *RecurrenceRule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(string(r.Frequency))
	if r.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}
	if r.Count > 0 {
		fmt.Fprintf(&b, ";COUNT=%d", r.Count)
	} else if !r.Until.IsZero() {
		if r.Until.DateOnly {
			b.WriteString(";UNTIL=" + r.Until.Time.Format("20060102"))
		} else {
			b.WriteString(";UNTIL=" + r.Until.Instant().Format("20060102T150405Z"))
		}
	}
	if r.WeekStart != time.Monday {
		b.WriteString(";WKST=" + weekdayNames[r.WeekStart])
	}
	writeIntList(&b, "BYSECOND", r.BySecond)
	writeIntList(&b, "BYMINUTE", r.ByMinute)
	writeIntList(&b, "BYHOUR", r.ByHour)
	if len(r.ByDay) > 0 {
		b.WriteString(";BYDAY=")
		for i, wd := range r.ByDay {
			if i > 0 {
				b.WriteByte(',')
			}
			if wd.Pos != 0 {
				fmt.Fprintf(&b, "%d", wd.Pos)
			}
			b.WriteString(weekdayNames[wd.Day])
		}
	}
	writeIntList(&b, "BYMONTHDAY", r.ByMonthDay)
	writeIntList(&b, "BYYEARDAY", r.ByYearDay)
	writeIntList(&b, "BYWEEKNO", r.ByWeekNo)
	writeIntList(&b, "BYMONTH", r.ByMonth)
	writeIntList(&b, "BYSETPOS", r.BySetPos)
	return b.String()
}

func writeIntList(b *strings.Builder, name string, vals []int) {
	if len(vals) == 0 {
		return
	}
	b.WriteString(";" + name + "=")
	for i, v := range vals {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(b, "%d", v)
	}
}

// Clone returns a deep copy of the rule.
func (r *RecurrenceRule) Clone() *RecurrenceRule {
	c := *r
	c.BySecond = append([]int(nil), r.BySecond...)
	c.ByMinute = append([]int(nil), r.ByMinute...)
	c.ByHour = append([]int(nil), r.ByHour...)
	c.ByDay = append([]WeekdayPos(nil), r.ByDay...)
	c.ByMonthDay = append([]int(nil), r.ByMonthDay...)
	c.ByYearDay = append([]int(nil), r.ByYearDay...)
	c.ByWeekNo = append([]int(nil), r.ByWeekNo...)
	c.ByMonth = append([]int(nil), r.ByMonth...)
	c.BySetPos = append([]int(nil), r.BySetPos...)
	return &c
}

var rruleFreqs = map[Frequency]rrule.Frequency{
	FreqYearly: rrule.YEARLY, FreqMonthly: rrule.MONTHLY, FreqWeekly: rrule.WEEKLY,
	FreqDaily: rrule.DAILY, FreqHourly: rrule.HOURLY, FreqMinutely: rrule.MINUTELY,
	FreqSecondly: rrule.SECONDLY,
}

// rrule-go numbers weekdays from Monday.
var rruleWeekdays = [7]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// iterator builds an expansion iterator for the rule anchored at seed.
// The seed instant itself is always part of the expansion, per the usual
// DTSTART-synchronized interpretation.
func (r *RecurrenceRule) iterator(seed DateTime) (rrule.Next, error) {
	opt := rrule.ROption{
		Freq:       rruleFreqs[r.Frequency],
		Dtstart:    seed.Time,
		Interval:   r.Interval,
		Count:      r.Count,
		Wkst:       rruleWeekdays[r.WeekStart],
		Bysecond:   r.BySecond,
		Byminute:   r.ByMinute,
		Byhour:     r.ByHour,
		Bymonthday: r.ByMonthDay,
		Byyearday:  r.ByYearDay,
		Byweekno:   r.ByWeekNo,
		Bymonth:    r.ByMonth,
		Bysetpos:   r.BySetPos,
	}
	if !r.Until.IsZero() {
		until := r.Until
		if until.DateOnly {
			until = until.EndOfDay()
		}
		opt.Until = until.Time
	}
	for _, wd := range r.ByDay {
		day := rruleWeekdays[wd.Day]
		if wd.Pos != 0 {
			day = day.Nth(wd.Pos)
		}
		opt.Byweekday = append(opt.Byweekday, day)
	}
	rule, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("recurrence rule %q: %w", r.String(), ErrMalformedInput)
	}
	return rule.Iterator(), nil
}

package calcore

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// parseUTCOffset parses "+0100", "-0530" or "+010000" forms into seconds
// east of UTC.
func parseUTCOffset(s string) (int, error) {
	orig := s
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if len(s) != 4 && len(s) != 6 {
		return 0, fmt.Errorf("utc offset %q: %w", orig, ErrMalformedInput)
	}
	var h, m, sec int
	if _, err := fmt.Sscanf(s[:4], "%02d%02d", &h, &m); err != nil {
		return 0, fmt.Errorf("utc offset %q: %w", orig, ErrMalformedInput)
	}
	if len(s) == 6 {
		if _, err := fmt.Sscanf(s[4:], "%02d", &sec); err != nil {
			return 0, fmt.Errorf("utc offset %q: %w", orig, ErrMalformedInput)
		}
	}
	return sign * (h*3600 + m*60 + sec), nil
}

func formatUTCOffset(seconds int) string {
	sign := "+"
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	h, rest := seconds/3600, seconds%3600
	m, s := rest/60, rest%60
	if s != 0 {
		return fmt.Sprintf("%s%02d%02d%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%s%02d%02d", sign, h, m)
}

// parseVTimezone interprets a VTIMEZONE block.  Observance rules are
// expanded into concrete transitions up to the scan horizon.
func parseVTimezone(c *rawComponent) (*Timezone, error) {
	z := &Timezone{Name: c.propValue("TZID")}
	if z.Name == "" {
		return nil, fmt.Errorf("VTIMEZONE lacks TZID: %w", ErrMalformedInput)
	}
	z.URL = c.propValue("TZURL")
	if lm := c.propValue("LAST-MODIFIED"); lm != "" {
		if t, err := time.Parse("20060102T150405Z", lm); err == nil {
			z.LastModified = t
		}
	}

	first := true
	for _, obs := range c.children {
		if obs.name != "STANDARD" && obs.name != "DAYLIGHT" {
			continue
		}
		from, err := parseUTCOffset(obs.propValue("TZOFFSETFROM"))
		if err != nil {
			return nil, err
		}
		to, err := parseUTCOffset(obs.propValue("TZOFFSETTO"))
		if err != nil {
			return nil, err
		}
		phase := TimezonePhase{Offset: to, IsDST: obs.name == "DAYLIGHT"}
		for i := range obs.props {
			if obs.props[i].Name == "TZNAME" {
				phase.Abbrevs = append(phase.Abbrevs, obs.props[i].Value)
			}
		}
		phase.Comment = obs.propValue("COMMENT")
		z.Phases = append(z.Phases, phase)
		idx := len(z.Phases) - 1

		dtstart := obs.propValue("DTSTART")
		local, err := time.ParseInLocation("20060102T150405", dtstart, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("observance DTSTART %q: %w", dtstart, ErrMalformedInput)
		}
		fromDur := time.Duration(from) * time.Second
		z.Transitions = append(z.Transitions, TimezoneTransition{At: local.Add(-fromDur), Phase: idx})
		if first {
			z.PreOffset = from
			first = false
		}

		if rr := obs.propValue("RRULE"); rr != "" {
			rule, err := ParseRecurrenceRule(rr)
			if err != nil {
				return nil, err
			}
			if !rule.Until.IsZero() && rule.Until.Spec.Kind == TimeUTC && !rule.Until.DateOnly {
				// UNTIL names a UTC instant; the rule expands in
				// observance-local time, so shift by TZOFFSETFROM.
				rule.Until = NewDateTime(rule.Until.Time.Add(fromDur), FloatingSpec())
			}
			seed := NewDateTime(local, FloatingSpec())
			next, err := rule.iterator(seed)
			if err != nil {
				return nil, err
			}
			for {
				t, ok := next()
				if !ok || t.After(zoneScanEnd) {
					break
				}
				if t.Equal(local) {
					continue
				}
				z.Transitions = append(z.Transitions, TimezoneTransition{At: t.Add(-fromDur), Phase: idx})
			}
		}
		for i := range obs.props {
			if obs.props[i].Name != "RDATE" {
				continue
			}
			for _, v := range strings.Split(obs.props[i].Value, ",") {
				t, err := time.ParseInLocation("20060102T150405", v, time.UTC)
				if err != nil {
					continue
				}
				if t.Equal(local) {
					continue
				}
				z.Transitions = append(z.Transitions, TimezoneTransition{At: t.Add(-fromDur), Phase: idx})
			}
		}
	}
	sort.SliceStable(z.Transitions, func(i, j int) bool {
		return z.Transitions[i].At.Before(z.Transitions[j].At)
	})
	// Drop duplicate instants; later observance blocks win.
	dedup := z.Transitions[:0]
	for _, tr := range z.Transitions {
		if len(dedup) > 0 && dedup[len(dedup)-1].At.Equal(tr.At) {
			dedup[len(dedup)-1] = tr
			continue
		}
		dedup = append(dedup, tr)
	}
	z.Transitions = dedup
	return z, nil
}

// transitionGroup collects transitions entering the same phase from the
// same prior offset; each group becomes one observance block.
type transitionGroup struct {
	phase int
	from  int
	times []time.Time
}

// writeVTimezone renders a timezone definition as a VTIMEZONE component.
// Runs of yearly transitions collapse into an RRULE; irregular ones are
// listed as RDATEs.
func writeVTimezone(z *Timezone) *rawComponent {
	c := &rawComponent{name: "VTIMEZONE"}
	c.add("TZID", z.Name)
	if z.URL != "" {
		c.add("TZURL", z.URL)
	}
	if !z.LastModified.IsZero() {
		c.add("LAST-MODIFIED", z.LastModified.UTC().Format("20060102T150405Z"))
	}

	var groups []*transitionGroup
	index := map[[2]int]*transitionGroup{}
	prev := z.PreOffset
	for _, tr := range z.Transitions {
		key := [2]int{tr.Phase, prev}
		g, ok := index[key]
		if !ok {
			g = &transitionGroup{phase: tr.Phase, from: prev}
			index[key] = g
			groups = append(groups, g)
		}
		g.times = append(g.times, tr.At)
		prev = z.Phases[tr.Phase].Offset
	}

	for _, g := range groups {
		phase := z.Phases[g.phase]
		name := "STANDARD"
		if phase.IsDST {
			name = "DAYLIGHT"
		}
		obs := &rawComponent{name: name}
		fromDur := time.Duration(g.from) * time.Second
		local := func(t time.Time) time.Time { return t.Add(fromDur) }
		obs.add("DTSTART", local(g.times[0]).Format("20060102T150405"))
		obs.add("TZOFFSETFROM", formatUTCOffset(g.from))
		obs.add("TZOFFSETTO", formatUTCOffset(phase.Offset))
		for _, n := range phase.Abbrevs {
			obs.add("TZNAME", n)
		}
		if phase.Comment != "" {
			obs.add("COMMENT", phase.Comment)
		}
		if rule, ok := yearlyRuleFor(g.times, fromDur); ok {
			obs.add("RRULE", rule)
		} else {
			for _, t := range g.times[1:] {
				obs.add("RDATE", local(t).Format("20060102T150405"))
			}
		}
		c.children = append(c.children, obs)
	}
	return c
}

// yearlyRuleFor tries to express a run of transition instants as a single
// yearly rule.  It recognizes same-month fixed-day and nth-or-last-weekday
// patterns when at least three transitions agree.
func yearlyRuleFor(times []time.Time, fromDur time.Duration) (string, bool) {
	if len(times) < 3 {
		return "", false
	}
	first := times[0].Add(fromDur)
	month := first.Month()
	sameDay, sameNth, sameLast := true, true, true
	for _, t := range times {
		lt := t.Add(fromDur)
		if lt.Month() != month ||
			lt.Hour() != first.Hour() || lt.Minute() != first.Minute() || lt.Second() != first.Second() {
			return "", false
		}
		if lt.Day() != first.Day() {
			sameDay = false
		}
		if lt.Weekday() != first.Weekday() || nthWeekdayInMonth(lt) != nthWeekdayInMonth(first) {
			sameNth = false
		}
		if lt.Weekday() != first.Weekday() || !isLastWeekdayInMonth(lt) {
			sameLast = false
		}
	}
	// Consecutive years only; gaps mean the pattern does not hold.
	for i := 1; i < len(times); i++ {
		if times[i].Add(fromDur).Year() != first.Year()+i {
			return "", false
		}
	}
	// UNTIL is a UTC instant (RFC 5545 section 3.3.10); the expansion side
	// converts it back to observance-local time with TZOFFSETFROM.
	until := times[len(times)-1].UTC().Format("20060102T150405Z")
	switch {
	case sameLast:
		return fmt.Sprintf("FREQ=YEARLY;UNTIL=%s;BYDAY=-1%s;BYMONTH=%d",
			until, weekdayNames[first.Weekday()], int(month)), true
	case sameNth:
		return fmt.Sprintf("FREQ=YEARLY;UNTIL=%s;BYDAY=%d%s;BYMONTH=%d",
			until, nthWeekdayInMonth(first), weekdayNames[first.Weekday()], int(month)), true
	case sameDay:
		return fmt.Sprintf("FREQ=YEARLY;UNTIL=%s;BYMONTHDAY=%d;BYMONTH=%d",
			until, first.Day(), int(month)), true
	}
	return "", false
}

func nthWeekdayInMonth(t time.Time) int {
	return (t.Day()-1)/7 + 1
}

func isLastWeekdayInMonth(t time.Time) bool {
	return t.AddDate(0, 0, 7).Month() != t.Month()
}

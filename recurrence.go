package calcore

import (
	"fmt"
	"sort"
	"time"
)

// Recurrence is the full recurrence set of an incidence: inclusion rules
// and dates minus exclusion rules and dates.  The anchoring start instant
// is not stored here; callers pass the incidence start as the seed.
type Recurrence struct {
	RRules  []*RecurrenceRule
	ExRules []*RecurrenceRule
	RDates  []DateTime
	ExDates []DateTime
}

// IsEmpty reports whether the recurrence adds any occurrence beyond the
// seed.
func (r *Recurrence) IsEmpty() bool {
	return r == nil || (len(r.RRules) == 0 && len(r.RDates) == 0)
}

// Clone returns a deep copy.
func (r *Recurrence) Clone() *Recurrence {
	if r == nil {
		return nil
	}
	c := &Recurrence{
		RDates:  append([]DateTime(nil), r.RDates...),
		ExDates: append([]DateTime(nil), r.ExDates...),
	}
	for _, rule := range r.RRules {
		c.RRules = append(c.RRules, rule.Clone())
	}
	for _, rule := range r.ExRules {
		c.ExRules = append(c.ExRules, rule.Clone())
	}
	return c
}

// AddExDate excludes a single occurrence instant.
func (r *Recurrence) AddExDate(dt DateTime) {
	r.ExDates = append(r.ExDates, dt)
}

// occStream yields occurrence candidates in non-decreasing order.  The
// second result is false when the stream is exhausted.
type occStream func() (DateTime, bool)

func sliceStream(dates []DateTime) occStream {
	sorted := append([]DateTime(nil), dates...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	i := 0
	return func() (DateTime, bool) {
		if i >= len(sorted) {
			return DateTime{}, false
		}
		dt := sorted[i]
		i++
		return dt, true
	}
}

func ruleStream(rule *RecurrenceRule, seed DateTime) (occStream, error) {
	next, err := rule.iterator(seed)
	if err != nil {
		return nil, err
	}
	return func() (DateTime, bool) {
		t, ok := next()
		if !ok {
			return DateTime{}, false
		}
		return DateTime{Time: t, Spec: seed.Spec, DateOnly: seed.DateOnly}, true
	}, nil
}

// OccurrenceIterator walks the occurrences of a recurrence set in
// ascending order.  It is lazy; unbounded rules cost nothing beyond the
// occurrences actually pulled.
type OccurrenceIterator struct {
	sources []occStream
	heads   []DateTime
	live    []bool

	exDates []DateTime
	exRules []occStream
	exHeads []DateTime
	exLive  []bool

	last    DateTime
	started bool
}

// Iterator returns an iterator over all occurrences, the seed included,
// starting from the earliest.
func (r *Recurrence) Iterator(seed DateTime) (*OccurrenceIterator, error) {
	it := &OccurrenceIterator{}
	it.sources = append(it.sources, sliceStream([]DateTime{seed}))
	if r != nil {
		it.sources = append(it.sources, sliceStream(r.RDates))
		for _, rule := range r.RRules {
			s, err := ruleStream(rule, seed)
			if err != nil {
				return nil, err
			}
			it.sources = append(it.sources, s)
		}
		it.exDates = append([]DateTime(nil), r.ExDates...)
		for _, rule := range r.ExRules {
			s, err := ruleStream(rule, seed)
			if err != nil {
				return nil, err
			}
			it.exRules = append(it.exRules, s)
		}
	}
	it.heads = make([]DateTime, len(it.sources))
	it.live = make([]bool, len(it.sources))
	for i, s := range it.sources {
		it.heads[i], it.live[i] = s()
	}
	it.exHeads = make([]DateTime, len(it.exRules))
	it.exLive = make([]bool, len(it.exRules))
	for i, s := range it.exRules {
		it.exHeads[i], it.exLive[i] = s()
	}
	return it, nil
}

// Next returns the next occurrence, or false when the set is exhausted.
func (it *OccurrenceIterator) Next() (DateTime, bool) {
	for {
		min := -1
		for i := range it.sources {
			if !it.live[i] {
				continue
			}
			if min < 0 || it.heads[i].Before(it.heads[min]) {
				min = i
			}
		}
		if min < 0 {
			return DateTime{}, false
		}
		dt := it.heads[min]
		it.heads[min], it.live[min] = it.sources[min]()
		if it.started && !it.last.Before(dt) {
			// Duplicate produced by overlapping rules or an RDATE equal to
			// the seed.
			continue
		}
		if it.excluded(dt) {
			it.started, it.last = true, dt
			continue
		}
		it.started, it.last = true, dt
		return dt, true
	}
}

func (it *OccurrenceIterator) excluded(dt DateTime) bool {
	for _, ex := range it.exDates {
		if ex.DateOnly {
			if ex.SameDay(dt) {
				return true
			}
		} else if ex.Equal(dt) {
			return true
		}
	}
	for i := range it.exRules {
		for it.exLive[i] && it.exHeads[i].Before(dt) {
			it.exHeads[i], it.exLive[i] = it.exRules[i]()
		}
		if it.exLive[i] && it.exHeads[i].Equal(dt) {
			return true
		}
	}
	return false
}

// OccurrencesBetween returns every occurrence with from <= occurrence < to.
// The seed anchors the rules.  Errors from malformed rules degrade to an
// empty result; validate rules at parse time.
func (r *Recurrence) OccurrencesBetween(seed DateTime, from, to time.Time) []DateTime {
	it, err := r.Iterator(seed)
	if err != nil {
		return nil
	}
	var out []DateTime
	for {
		dt, ok := it.Next()
		if !ok {
			break
		}
		instant := dt.Instant()
		if !instant.Before(to.UTC()) {
			break
		}
		if instant.Before(from.UTC()) {
			continue
		}
		out = append(out, dt)
	}
	return out
}

// RecursAt reports whether at is an occurrence of the set anchored at seed.
func (r *Recurrence) RecursAt(seed, at DateTime) bool {
	it, err := r.Iterator(seed)
	if err != nil {
		return false
	}
	for {
		dt, ok := it.Next()
		if !ok {
			return false
		}
		if dt.Equal(at) {
			return true
		}
		if at.Before(dt) {
			return false
		}
	}
}

// RecursOn reports whether any occurrence of the set anchored at seed
// falls on the given calendar day.
func (r *Recurrence) RecursOn(seed DateTime, day DateTime) bool {
	it, err := r.Iterator(seed)
	if err != nil {
		return false
	}
	for {
		dt, ok := it.Next()
		if !ok {
			return false
		}
		if dt.SameDay(day) {
			return true
		}
		if day.EndOfDay().Before(dt) {
			return false
		}
	}
}

// DissociateOccurrence splits the occurrence at the given instant out of a
// recurring incidence into a standalone exception.  The returned object is
// a deep copy with a fresh UID and RecurrenceID set; o itself is modified
// to no longer produce that occurrence (an EXDATE for a single split, a
// truncated rule set for a this-and-future split).
func DissociateOccurrence(o Object, at DateTime, thisAndFuture bool) (Object, error) {
	inc := IncidenceOf(o)
	if inc == nil {
		return nil, fmt.Errorf("cannot dissociate a free/busy report")
	}
	if !inc.Recurs() {
		return nil, fmt.Errorf("incidence %s does not recur", inc.UID)
	}
	if !inc.Recurrence.RecursAt(inc.DTStart, at) {
		return nil, fmt.Errorf("incidence %s has no occurrence at %s", inc.UID, at.Time)
	}

	split := o.Clone()
	sp := IncidenceOf(split)
	sp.UID = NewUID()
	sp.SetSchedulingID("")
	sp.DTStart = at
	if ev, ok := split.(*Event); ok && ev.HasEndDate {
		length := ev.DTEnd.Instant().Sub(inc.DTStart.Instant())
		ev.DTEnd = NewDateTime(at.Time.Add(length), at.Spec)
		ev.DTEnd.DateOnly = at.DateOnly
	}
	sp.RecurrenceID = at
	sp.ThisAndFuture = thisAndFuture

	if thisAndFuture {
		// The exception carries the remainder of the series; the parent
		// stops just before the split point.
		cutoff := NewDateTime(at.Time.Add(-time.Second), at.Spec)
		for _, rule := range inc.Recurrence.RRules {
			rule.Count = 0
			rule.Until = cutoff
		}
		var kept []DateTime
		for _, rd := range inc.Recurrence.RDates {
			if rd.Before(at) {
				kept = append(kept, rd)
			}
		}
		inc.Recurrence.RDates = kept
	} else {
		sp.Recurrence = nil
		inc.Recurrence.AddExDate(at)
	}
	inc.BumpRevision()
	return split, nil
}

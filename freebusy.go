package calcore

import (
	"sort"
	"time"
)

// FreeBusyType enumerates the FBTYPE parameter values (RFC 5545 section
// 3.2.9).
type FreeBusyType string

const (
	FBFree            FreeBusyType = "FREE"
	FBBusy            FreeBusyType = "BUSY"
	FBBusyTentative   FreeBusyType = "BUSY-TENTATIVE"
	FBBusyUnavailable FreeBusyType = "BUSY-UNAVAILABLE"
	FBUnknown         FreeBusyType = ""
)

// FreeBusyPeriod is one busy span within a free/busy report.  Periods are
// instants; date-only values do not occur here.
type FreeBusyPeriod struct {
	Start time.Time
	End   time.Time
	// HasDuration records that the period was expressed as start plus
	// duration rather than start and end, so it serializes the same way.
	HasDuration bool
	Duration    Duration

	Type     FreeBusyType
	Summary  string
	Location string
}

// FreeBusy is a VFREEBUSY payload: a list of busy periods over a query
// window, exchanged through iTIP.
type FreeBusy struct {
	IncidenceBase

	DTEnd DateTime

	// Periods is kept sorted by start time.
	Periods []FreeBusyPeriod
}

// NewFreeBusy returns a free/busy report with the given UID, minting one
// when uid is empty.
func NewFreeBusy(uid string) *FreeBusy {
	if uid == "" {
		uid = NewUID()
	}
	return &FreeBusy{IncidenceBase: IncidenceBase{UID: uid}}
}

func (f *FreeBusy) ObjectBase() *IncidenceBase { return &f.IncidenceBase }

func (f *FreeBusy) Clone() Object {
	c := *f
	c.IncidenceBase = f.cloneBase()
	c.Periods = append([]FreeBusyPeriod(nil), f.Periods...)
	return &c
}

// AddPeriod inserts a period, keeping the list sorted by start time.
func (f *FreeBusy) AddPeriod(p FreeBusyPeriod) {
	f.Periods = append(f.Periods, p)
	sort.SliceStable(f.Periods, func(i, j int) bool {
		return f.Periods[i].Start.Before(f.Periods[j].Start)
	})
}

// BuildFreeBusy reports the busy periods of cal's opaque events between
// from and to.  Recurring events contribute every occurrence that overlaps
// the window; periods are clipped to the window edges.
func BuildFreeBusy(cal Calendar, from, to time.Time) *FreeBusy {
	fb := NewFreeBusy("")
	fb.DTStart = NewDateTime(from.UTC(), UTCSpec())
	fb.DTEnd = NewDateTime(to.UTC(), UTCSpec())

	for _, obj := range cal.Incidences() {
		ev, ok := obj.(*Event)
		if !ok {
			continue
		}
		if ev.Transparency == TransparencyTransparent || ev.Status == StatusCanceled {
			continue
		}
		length := ev.EffectiveEnd().Instant().Sub(ev.DTStart.Instant())
		if ev.AllDay {
			// All-day events span whole days; EffectiveEnd names the last
			// included day.
			length += 24 * time.Hour
		}
		var starts []time.Time
		if ev.Recurs() {
			// Widen the query so occurrences starting before the window but
			// reaching into it are found.
			for _, dt := range ev.Recurrence.OccurrencesBetween(ev.DTStart, from.Add(-length), to) {
				starts = append(starts, dt.Instant())
			}
		} else {
			starts = []time.Time{ev.DTStart.Instant()}
		}
		for _, start := range starts {
			end := start.Add(length)
			if !end.After(from) || !start.Before(to) {
				continue
			}
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			p := FreeBusyPeriod{Start: start, End: end, Type: FBBusy, Summary: ev.Summary, Location: ev.Location}
			if ev.Status == StatusTentative {
				p.Type = FBBusyTentative
			}
			fb.AddPeriod(p)
		}
	}
	return fb
}

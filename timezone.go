package calcore

import (
	"sort"
	"strings"
	"time"

	"4d63.com/tz"
	"github.com/sirupsen/logrus"
)

// TimezonePhase is one observance of a timezone: an offset, its daylight
// flag and the names used while it is in effect.
type TimezonePhase struct {
	// Offset is seconds east of UTC.
	Offset  int
	IsDST   bool
	Abbrevs []string
	Comment string
}

// TimezoneTransition records the phase becoming effective at an instant.
type TimezoneTransition struct {
	// At is the transition instant in UTC.
	At time.Time
	// Phase indexes into Timezone.Phases.
	Phase int
}

// Timezone is a resolved timezone definition: a set of phases and the
// sorted transitions between them.  It may be backed by a tz database
// location or parsed from a VTIMEZONE block.
type Timezone struct {
	Name         string
	URL          string
	LastModified time.Time

	Phases []TimezonePhase
	// Transitions is sorted ascending by instant.
	Transitions []TimezoneTransition
	// PreOffset applies before the first transition, in seconds east.
	PreOffset int

	loc *time.Location
}

// PhaseAt returns the phase in effect at the given UTC instant, or nil
// before the first transition.
func (z *Timezone) PhaseAt(at time.Time) *TimezonePhase {
	i := sort.Search(len(z.Transitions), func(i int) bool {
		return z.Transitions[i].At.After(at)
	})
	if i == 0 {
		return nil
	}
	return &z.Phases[z.Transitions[i-1].Phase]
}

// OffsetAt returns the UTC offset in seconds east at the given UTC instant.
func (z *Timezone) OffsetAt(at time.Time) int {
	if p := z.PhaseAt(at); p != nil {
		return p.Offset
	}
	return z.PreOffset
}

// OffsetAtLocal returns the UTC offset for a local wall-clock reading.
// During a backward transition the pre-transition offset wins; during a
// gap the post-transition offset applies, matching time.Date behavior.
func (z *Timezone) OffsetAtLocal(wall time.Time) int {
	guess := z.OffsetAt(wall.Add(-time.Duration(z.PreOffset) * time.Second))
	for i := 0; i < 2; i++ {
		next := z.OffsetAt(wall.Add(-time.Duration(guess) * time.Second))
		if next == guess {
			break
		}
		guess = next
	}
	return guess
}

// Location returns a time.Location honoring the timezone.  Definitions
// resolved from the tz database return the real location; parsed ones get
// a fixed zone for the offset in effect at the given instant.
func (z *Timezone) Location(at time.Time) *time.Location {
	if z.loc != nil {
		return z.loc
	}
	name := z.Name
	offset := z.OffsetAt(at)
	if p := z.PhaseAt(at); p != nil && len(p.Abbrevs) > 0 {
		name = p.Abbrevs[0]
	}
	return time.FixedZone(name, offset)
}

// LocalLocation returns a location suitable for interpreting a local
// wall-clock reading in this timezone.
func (z *Timezone) LocalLocation(wall time.Time) *time.Location {
	if z.loc != nil {
		return z.loc
	}
	return time.FixedZone(z.Name, z.OffsetAtLocal(wall))
}

// Equal reports whether two definitions describe the same observances,
// ignoring names and metadata.
func (z *Timezone) Equal(other *Timezone) bool {
	if len(z.Transitions) != len(other.Transitions) {
		return false
	}
	if z.PreOffset != other.PreOffset {
		return false
	}
	for i, tr := range z.Transitions {
		o := other.Transitions[i]
		if !tr.At.Equal(o.At) {
			return false
		}
		zp, op := z.Phases[tr.Phase], other.Phases[o.Phase]
		if zp.Offset != op.Offset || zp.IsDST != op.IsDST {
			return false
		}
	}
	return true
}

// zoneScanEnd bounds transition scans; 2038 covers the useful range of
// calendar data while keeping definitions small.
var zoneScanEnd = time.Date(2038, 1, 1, 0, 0, 0, 0, time.UTC)

// TimezoneFromLocation builds a definition by scanning a tz database
// location for transitions from 1970 through 2038.
func TimezoneFromLocation(name string, loc *time.Location) *Timezone {
	z := &Timezone{Name: name, loc: loc}
	type phaseKey struct {
		offset int
		dst    bool
	}
	phaseIndex := map[phaseKey]int{}
	addPhase := func(abbrev string, offset int, dst bool) int {
		key := phaseKey{offset: offset, dst: dst}
		if i, ok := phaseIndex[key]; ok {
			found := false
			for _, a := range z.Phases[i].Abbrevs {
				if a == abbrev {
					found = true
				}
			}
			if !found && abbrev != "" {
				z.Phases[i].Abbrevs = append(z.Phases[i].Abbrevs, abbrev)
			}
			return i
		}
		p := TimezonePhase{Offset: offset, IsDST: dst}
		if abbrev != "" {
			p.Abbrevs = []string{abbrev}
		}
		z.Phases = append(z.Phases, p)
		phaseIndex[key] = len(z.Phases) - 1
		return len(z.Phases) - 1
	}

	cursor := time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	first := true
	for cursor.Before(zoneScanEnd) {
		local := cursor.In(loc)
		abbrev, offset := local.Zone()
		start, end := local.ZoneBounds()
		if first {
			z.PreOffset = offset
			first = false
		}
		if !start.IsZero() {
			idx := addPhase(abbrev, offset, local.IsDST())
			z.Transitions = append(z.Transitions, TimezoneTransition{At: start.UTC(), Phase: idx})
		}
		if end.IsZero() || !end.After(cursor) {
			break
		}
		cursor = end.UTC()
	}
	sort.SliceStable(z.Transitions, func(i, j int) bool {
		return z.Transitions[i].At.Before(z.Transitions[j].At)
	})
	return z
}

// TimezoneResolver maps TZID values to timezone definitions.  Definitions
// harvested from VTIMEZONE blocks take precedence over the system tz
// database, which in turn falls back to a compiled-in copy of the
// database.
type TimezoneResolver struct {
	known map[string]*Timezone
	log   logrus.FieldLogger
}

// NewTimezoneResolver returns an empty resolver.  A nil logger falls back
// to the standard logrus logger.
func NewTimezoneResolver(log logrus.FieldLogger) *TimezoneResolver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TimezoneResolver{known: map[string]*Timezone{}, log: log}
}

// Add registers a definition under its name.  Re-adding an equal
// definition is a no-op; a conflicting one replaces the old definition
// with a warning.
func (r *TimezoneResolver) Add(z *Timezone) {
	if prev, ok := r.known[z.Name]; ok {
		if prev.Equal(z) {
			return
		}
		r.log.WithField("tzid", z.Name).Warn("replacing conflicting timezone definition")
	}
	r.known[z.Name] = z
}

// Known returns the registered definition for tzid, or nil.
func (r *TimezoneResolver) Known(tzid string) *Timezone {
	return r.known[tzid]
}

// Resolve maps a TZID to a timezone definition.  Registered definitions
// win; otherwise the tz database is consulted, first under the TZID as
// given and then with any vendor prefix stripped.
func (r *TimezoneResolver) Resolve(tzid string) (*Timezone, error) {
	if z, ok := r.known[tzid]; ok {
		return z, nil
	}
	for _, name := range []string{tzid, stripTZIDPrefix(tzid)} {
		if name == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			z := TimezoneFromLocation(tzid, loc)
			r.known[tzid] = z
			return z, nil
		}
		if loc, err := tz.LoadLocation(name); err == nil {
			z := TimezoneFromLocation(tzid, loc)
			r.known[tzid] = z
			return z, nil
		}
	}
	return nil, ErrTimezoneNotFound
}

// stripTZIDPrefix reduces globally-unique TZID forms such as
// "/softwarestudio.org/Olson_20011030_5/Europe/Berlin" to the trailing
// Olson name.
func stripTZIDPrefix(tzid string) string {
	if !strings.HasPrefix(tzid, "/") {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(tzid, "/"), "/")
	if len(parts) < 3 {
		return ""
	}
	return strings.Join(parts[2:], "/")
}

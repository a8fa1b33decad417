package calcore

import (
	"strconv"
	"strings"
)

// Compat patches incidences for quirks of the producing application,
// identified by the calendar's PRODID.
type Compat interface {
	FixEmptySummary(inc *Incidence)
	FixRecurrenceEnd(o Object)
	FixPriority(inc *Incidence)
	FixAlarms(inc *Incidence)
}

// applyCompat runs every fix on one decoded object.
func applyCompat(c Compat, o Object) {
	inc := IncidenceOf(o)
	if inc == nil {
		return
	}
	c.FixEmptySummary(inc)
	c.FixRecurrenceEnd(o)
	c.FixPriority(inc)
	c.FixAlarms(inc)
}

// compatDefault is the baseline applied to data from well-behaved
// producers.
type compatDefault struct{}

// FixEmptySummary fills a missing summary from the first description line,
// so list views never show blank entries.
func (compatDefault) FixEmptySummary(inc *Incidence) {
	if inc.Summary != "" || inc.Description == "" {
		return
	}
	line, _, _ := strings.Cut(inc.Description, "\n")
	inc.Summary = line
	inc.SummaryIsRich = inc.DescriptionIsRich
}

func (compatDefault) FixRecurrenceEnd(Object) {}
func (compatDefault) FixPriority(*Incidence)  {}
func (compatDefault) FixAlarms(*Incidence)    {}

// compatOutlook9 maps Outlook 2000's three-level priorities onto the
// nine-level scale.
type compatOutlook9 struct {
	compatDefault
}

func (compatOutlook9) FixPriority(inc *Incidence) {
	switch inc.Priority {
	case 1:
		// Already highest.
	case 2:
		inc.Priority = 5
	case 3:
		inc.Priority = 9
	}
}

// compatPreRelease patches data written by old releases of this library:
// recurrence ends carried the wrong value type and alarm offsets the wrong
// sign.
type compatPreRelease struct {
	compatDefault
}

func (compatPreRelease) FixRecurrenceEnd(o Object) {
	inc := IncidenceOf(o)
	if inc == nil || inc.Recurrence == nil {
		return
	}
	for _, rule := range inc.Recurrence.RRules {
		if rule.Until.IsZero() {
			continue
		}
		switch {
		case inc.AllDay && !rule.Until.DateOnly:
			// All-day series ended with a timed UNTIL; keep the date part.
			rule.Until.DateOnly = true
			rule.Until.Time = rule.Until.StartOfDay().Time
			rule.Until.Spec = FloatingSpec()
		case !inc.AllDay && rule.Until.DateOnly:
			// Timed series ended with a date UNTIL; stretch to end of day so
			// the last occurrence survives.
			rule.Until = rule.Until.EndOfDay()
			rule.Until.DateOnly = false
		}
	}
}

func (compatPreRelease) FixAlarms(inc *Incidence) {
	for _, a := range inc.Alarms {
		if !a.HasTime && !a.Offset.IsZero() && a.Offset.Seconds() > 0 {
			a.Offset = NewDurationSeconds(-a.Offset.Seconds())
		}
	}
}

// CompatForProduct selects the quirk set for a calendar by its PRODID and,
// for our own output, the recorded implementation version.
func CompatForProduct(prodID, implVersion string) Compat {
	if strings.Contains(prodID, "Outlook 9.0") {
		return compatOutlook9{}
	}
	if strings.Contains(prodID, "calcore") && implVersion != "" {
		parts := strings.SplitN(implVersion, ".", 3)
		major, errMaj := strconv.Atoi(parts[0])
		minor := 0
		if len(parts) > 1 {
			minor, _ = strconv.Atoi(parts[1])
		}
		if errMaj == nil && major == 0 && minor < 3 {
			return compatPreRelease{}
		}
	}
	return compatDefault{}
}

package calcore

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUTCOffset(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "+0100", want: 3600},
		{in: "-0530", want: -(5*3600 + 30*60)},
		{in: "+0000", want: 0},
		{in: "+010030", want: 3630},
		{in: "0200", want: 7200},
		{in: "+1", wantErr: true},
		{in: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseUTCOffset(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatUTCOffset(t *testing.T) {
	assert.Equal(t, "+0100", formatUTCOffset(3600))
	assert.Equal(t, "-0530", formatUTCOffset(-(5*3600 + 30*60)))
	assert.Equal(t, "+0000", formatUTCOffset(0))
	assert.Equal(t, "+010030", formatUTCOffset(3630))
}

func TestStripTZIDPrefix(t *testing.T) {
	assert.Equal(t, "Europe/Berlin",
		stripTZIDPrefix("/softwarestudio.org/Olson_20011030_5/Europe/Berlin"))
	assert.Equal(t, "", stripTZIDPrefix("Europe/Berlin"))
	assert.Equal(t, "", stripTZIDPrefix("/too/short"))
}

const berlinVTimezone = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//test//test//EN
BEGIN:VTIMEZONE
TZID:Europe/Berlin
BEGIN:DAYLIGHT
DTSTART:19700329T020000
TZOFFSETFROM:+0100
TZOFFSETTO:+0200
TZNAME:CEST
RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=-1SU
END:DAYLIGHT
BEGIN:STANDARD
DTSTART:19701025T030000
TZOFFSETFROM:+0200
TZOFFSETTO:+0100
TZNAME:CET
RRULE:FREQ=YEARLY;BYMONTH=10;BYDAY=-1SU
END:STANDARD
END:VTIMEZONE
END:VCALENDAR
`

func parseFixtureTimezone(t *testing.T, text string) *Timezone {
	t.Helper()
	top, err := parseRawDocument(newLineScanner(strings.NewReader(text)))
	require.NoError(t, err)
	require.Len(t, top, 1)
	for _, c := range top[0].children {
		if c.name == "VTIMEZONE" {
			z, err := parseVTimezone(c)
			require.NoError(t, err)
			return z
		}
	}
	t.Fatal("no VTIMEZONE in fixture")
	return nil
}

func TestParseVTimezone(t *testing.T) {
	z := parseFixtureTimezone(t, berlinVTimezone)
	assert.Equal(t, "Europe/Berlin", z.Name)
	require.Len(t, z.Phases, 2)

	// Winter and summer instants land in the right phases.
	assert.Equal(t, 3600, z.OffsetAt(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 7200, z.OffsetAt(time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)))

	summer := z.PhaseAt(time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC))
	require.NotNil(t, summer)
	assert.True(t, summer.IsDST)
	assert.Equal(t, []string{"CEST"}, summer.Abbrevs)
}

func TestParseVTimezoneRequiresTZID(t *testing.T) {
	c := &rawComponent{name: "VTIMEZONE"}
	_, err := parseVTimezone(c)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestOffsetAtLocal(t *testing.T) {
	z := parseFixtureTimezone(t, berlinVTimezone)
	// A summer wall-clock reading resolves to the daylight offset.
	assert.Equal(t, 7200, z.OffsetAtLocal(time.Date(2024, 7, 15, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, 3600, z.OffsetAtLocal(time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)))
}

func TestWriteVTimezoneRoundTrip(t *testing.T) {
	z := parseFixtureTimezone(t, berlinVTimezone)
	comp := writeVTimezone(z)
	assert.Equal(t, "VTIMEZONE", comp.name)
	assert.Equal(t, "Europe/Berlin", comp.propValue("TZID"))

	var b strings.Builder
	comp.write(&b, 75, "\n")
	reparsed := parseFixtureTimezone(t, "BEGIN:VCALENDAR\nVERSION:2.0\n"+b.String()+"END:VCALENDAR\n")
	assert.True(t, z.Equal(reparsed), "synthesized definition describes the same observances")
}

func TestWriteVTimezoneCollapsesYearlyRuns(t *testing.T) {
	z := parseFixtureTimezone(t, berlinVTimezone)
	comp := writeVTimezone(z)
	rules := 0
	for _, obs := range comp.children {
		if obs.propValue("RRULE") != "" {
			rules++
		}
		for i := range obs.props {
			assert.NotEqual(t, "RDATE", obs.props[i].Name,
				"regular yearly transitions should not fall back to RDATE lists")
		}
	}
	assert.Equal(t, 2, rules)
}

func TestTimezoneEqual(t *testing.T) {
	a := parseFixtureTimezone(t, berlinVTimezone)
	b := parseFixtureTimezone(t, berlinVTimezone)
	assert.True(t, a.Equal(b))

	b.Phases[0].Offset += 3600
	assert.False(t, a.Equal(b))
}

func TestResolverPrefersRegisteredDefinition(t *testing.T) {
	r := NewTimezoneResolver(nil)
	z := parseFixtureTimezone(t, berlinVTimezone)
	r.Add(z)

	got, err := r.Resolve("Europe/Berlin")
	require.NoError(t, err)
	assert.Same(t, z, got)
}

func TestResolverDatabaseFallback(t *testing.T) {
	r := NewTimezoneResolver(nil)
	z, err := r.Resolve("Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, 3600, z.OffsetAt(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, 7200, z.OffsetAt(time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)))
}

func TestResolverVendorPrefix(t *testing.T) {
	r := NewTimezoneResolver(nil)
	z, err := r.Resolve("/softwarestudio.org/Olson_20011030_5/Europe/Berlin")
	require.NoError(t, err)
	assert.Equal(t, 3600, z.OffsetAt(time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)))
}

func TestResolverUnknown(t *testing.T) {
	r := NewTimezoneResolver(nil)
	_, err := r.Resolve("Nowhere/Atlantis")
	assert.ErrorIs(t, err, ErrTimezoneNotFound)
}

func TestTimezoneFromFixedLocation(t *testing.T) {
	loc := time.FixedZone("TEST", 5*3600)
	z := TimezoneFromLocation("TEST", loc)
	assert.Equal(t, 5*3600, z.PreOffset)
	assert.Empty(t, z.Transitions)
	assert.Equal(t, 5*3600, z.OffsetAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWriteVTimezoneUntilIsUTC(t *testing.T) {
	z := parseFixtureTimezone(t, berlinVTimezone)
	comp := writeVTimezone(z)
	for _, obs := range comp.children {
		rr := obs.propValue("RRULE")
		require.NotEmpty(t, rr)
		var until string
		for _, part := range strings.Split(rr, ";") {
			if v, ok := strings.CutPrefix(part, "UNTIL="); ok {
				until = v
			}
		}
		require.NotEmpty(t, until)
		assert.True(t, strings.HasSuffix(until, "Z"),
			"a timed UNTIL is written as a UTC instant, got %s", until)
	}
}

func TestTimezoneEqualAcrossSources(t *testing.T) {
	r := NewTimezoneResolver(nil)
	fromDB, err := r.Resolve("Europe/Berlin")
	require.NoError(t, err)

	comp := writeVTimezone(fromDB)
	var b strings.Builder
	comp.write(&b, 75, "\n")
	fromDoc := parseFixtureTimezone(t, "BEGIN:VCALENDAR\nVERSION:2.0\n"+b.String()+"END:VCALENDAR\n")

	assert.True(t, fromDB.Equal(fromDoc),
		"a parsed definition and a database zone with the same transition table compare equal")
	assert.False(t, fromDoc.Equal(parseFixtureTimezone(t, berlinVTimezone)),
		"differing transition tables do not compare equal")
}

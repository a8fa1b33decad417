package calcore

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a signed span of time counted either in whole days (for
// date-only arithmetic) or in seconds.  The two representations are kept
// apart deliberately: a day is not 86400 seconds across a daylight-saving
// transition.
type Duration struct {
	value int
	daily bool
}

// NewDurationSeconds returns a seconds-based duration.
func NewDurationSeconds(seconds int) Duration {
	return Duration{value: seconds}
}

// NewDurationDays returns a day-based duration.
func NewDurationDays(days int) Duration {
	return Duration{value: days, daily: true}
}

func (d Duration) IsDaily() bool { return d.daily }
func (d Duration) IsZero() bool  { return d.value == 0 }

// Days returns the duration in whole days, truncating for seconds-based
// values.
func (d Duration) Days() int {
	if d.daily {
		return d.value
	}
	return d.value / 86400
}

// Seconds returns the duration in seconds, treating a day as 86400 seconds
// for day-based values.
func (d Duration) Seconds() int {
	if d.daily {
		return d.value * 86400
	}
	return d.value
}

// AddTo shifts dt by the duration, using calendar-day arithmetic for daily
// durations so the wall-clock time of day is preserved across DST changes.
func (d Duration) AddTo(dt DateTime) DateTime {
	if d.daily {
		return dt.AddDays(d.value)
	}
	return dt.Add(time.Duration(d.value) * time.Second)
}

// ParseDuration reads an RFC 5545 section 3.3.6 duration value such as
// "P15DT5H0M20S", "-PT15M" or "P7W".
func ParseDuration(s string) (Duration, error) {
	orig := s
	sign := 1
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") {
		return Duration{}, fmt.Errorf("duration %q: missing P designator", orig)
	}
	s = s[1:]
	var (
		seconds  int
		days     int
		sawTime  bool
		sawDate  bool
		sawWeeks bool
	)
	n := 0
	haveDigits := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			haveDigits = true
			continue
		}
		if c == 'T' {
			if haveDigits {
				return Duration{}, fmt.Errorf("duration %q: digits before T", orig)
			}
			sawTime = true
			continue
		}
		if !haveDigits {
			return Duration{}, fmt.Errorf("duration %q: designator %c without digits", orig, c)
		}
		switch c {
		case 'W':
			days += n * 7
			sawWeeks = true
		case 'D':
			days += n
			sawDate = true
		case 'H':
			if !sawTime {
				return Duration{}, fmt.Errorf("duration %q: H outside time part", orig)
			}
			seconds += n * 3600
		case 'M':
			if !sawTime {
				return Duration{}, fmt.Errorf("duration %q: M outside time part", orig)
			}
			seconds += n * 60
		case 'S':
			if !sawTime {
				return Duration{}, fmt.Errorf("duration %q: S outside time part", orig)
			}
			seconds += n
		default:
			return Duration{}, fmt.Errorf("duration %q: unknown designator %c", orig, c)
		}
		n = 0
		haveDigits = false
	}
	if haveDigits {
		return Duration{}, fmt.Errorf("duration %q: trailing digits", orig)
	}
	if sawWeeks && (sawDate || seconds != 0) {
		return Duration{}, fmt.Errorf("duration %q: weeks cannot be combined with days or time", orig)
	}
	if seconds == 0 && (sawWeeks || sawDate) {
		return NewDurationDays(sign * days), nil
	}
	return NewDurationSeconds(sign * (days*86400 + seconds)), nil
}

// String writes the duration in the RFC 5545 form.  Day-based values are
// written as weeks when divisible by seven, otherwise as days; seconds-based
// values as a days+time form.  Weeks and days/time never appear together in
// one value.
func (d Duration) String() string {
	var b strings.Builder
	v := d.value
	if v < 0 {
		b.WriteByte('-')
		v = -v
	}
	b.WriteByte('P')
	if d.daily {
		if v%7 == 0 && v != 0 {
			b.WriteString(strconv.Itoa(v / 7))
			b.WriteByte('W')
		} else {
			b.WriteString(strconv.Itoa(v))
			b.WriteByte('D')
		}
		return b.String()
	}
	days := v / 86400
	v %= 86400
	hours := v / 3600
	v %= 3600
	mins := v / 60
	secs := v % 60
	if days > 0 {
		b.WriteString(strconv.Itoa(days))
		b.WriteByte('D')
	}
	if hours > 0 || mins > 0 || secs > 0 || days == 0 {
		b.WriteByte('T')
		if hours > 0 {
			b.WriteString(strconv.Itoa(hours))
			b.WriteByte('H')
		}
		if mins > 0 {
			b.WriteString(strconv.Itoa(mins))
			b.WriteByte('M')
		}
		if secs > 0 || (hours == 0 && mins == 0) {
			b.WriteString(strconv.Itoa(secs))
			b.WriteByte('S')
		}
	}
	return b.String()
}

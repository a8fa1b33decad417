package calcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateTimeEqual(t *testing.T) {
	utc := NewDateTime(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), UTCSpec())
	sameInstant := NewDateTime(time.Date(2024, 6, 1, 14, 0, 0, 0, time.FixedZone("X", 7200)), ZonedSpec("X"))
	floating := NewDateTime(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), FloatingSpec())

	assert.True(t, utc.Equal(sameInstant), "absolute values compare by instant")
	assert.False(t, utc.Equal(floating), "a floating value never equals an absolute one")
	assert.True(t, floating.Equal(floating))

	date := NewDate(2024, time.June, 1)
	assert.False(t, date.Equal(utc), "date-only never equals timed")
	assert.True(t, date.Equal(NewDate(2024, time.June, 1)))
}

func TestDateTimeDayHelpers(t *testing.T) {
	dt := NewDateTime(time.Date(2024, 6, 1, 17, 30, 0, 0, time.UTC), UTCSpec())

	start := dt.StartOfDay()
	assert.True(t, start.DateOnly)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), start.Time)

	end := dt.EndOfDay()
	assert.False(t, end.DateOnly)
	assert.Equal(t, time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC), end.Time)

	assert.True(t, dt.SameDay(start))
	assert.False(t, dt.SameDay(dt.AddDays(1)))
}

func TestDateTimeInstant(t *testing.T) {
	zoned := NewDateTime(time.Date(2024, 6, 1, 14, 0, 0, 0, time.FixedZone("X", 7200)), ZonedSpec("X"))
	assert.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), zoned.Instant())

	floating := NewDateTime(time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC), FloatingSpec())
	assert.Equal(t, time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC), floating.Instant(),
		"floating reads its wall clock as UTC")
}

func TestDateTimeAddDaysKeepsWallClock(t *testing.T) {
	dt := NewDate(2024, time.February, 28)
	assert.Equal(t, NewDate(2024, time.February, 29), dt.AddDays(1))
	assert.Equal(t, NewDate(2024, time.March, 1), dt.AddDays(2))
}

package calcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    Duration
		wantErr bool
	}{
		{in: "PT15M", want: NewDurationSeconds(15 * 60)},
		{in: "-PT30M", want: NewDurationSeconds(-30 * 60)},
		{in: "+PT5S", want: NewDurationSeconds(5)},
		{in: "P15DT5H0M20S", want: NewDurationSeconds(15*86400 + 5*3600 + 20)},
		{in: "P7W", want: NewDurationDays(49)},
		{in: "P3D", want: NewDurationDays(3)},
		{in: "PT0S", want: NewDurationSeconds(0)},
		{in: "P1W1D", wantErr: true},
		{in: "P1WT1H", wantErr: true},
		{in: "PT1X", wantErr: true},
		{in: "15M", wantErr: true},
		{in: "P", wantErr: false},
		{in: "PT5", wantErr: true},
		{in: "P1T2H", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDurationString(t *testing.T) {
	tests := []struct {
		d    Duration
		want string
	}{
		{NewDurationSeconds(15 * 60), "PT15M"},
		{NewDurationSeconds(-30 * 60), "-PT30M"},
		{NewDurationSeconds(0), "PT0S"},
		{NewDurationSeconds(86400 + 3600), "P1DT1H"},
		{NewDurationDays(49), "P7W"},
		{NewDurationDays(3), "P3D"},
		{NewDurationDays(-14), "-P2W"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.d.String())
	}
}

func TestDurationStringRoundTrip(t *testing.T) {
	for _, in := range []string{"PT15M", "-PT30M", "P7W", "P3D", "P1DT1H", "PT0S"} {
		d, err := ParseDuration(in)
		require.NoError(t, err)
		assert.Equal(t, in, d.String())
	}
}

func TestDurationAddTo(t *testing.T) {
	seed := NewDate(2024, time.February, 28)
	assert.Equal(t, NewDate(2024, time.March, 6), NewDurationDays(7).AddTo(seed))

	timed := NewDateTime(time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), UTCSpec())
	assert.Equal(t,
		NewDateTime(time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC), UTCSpec()),
		NewDurationSeconds(90*60).AddTo(timed))
}

package discount

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePercent(t *testing.T) {
	tests := []struct {
		percent int
		wantErr bool
	}{
		{percent: 0},
		{percent: 50},
		{percent: 100},
		{percent: -1, wantErr: true},
		{percent: 101, wantErr: true},
		{percent: 1000, wantErr: true},
	}

	for _, tt := range tests {
		err := ValidatePercent(tt.percent)
		if tt.wantErr {
			var rangeErr *ErrPercentRange
			require.ErrorAs(t, err, &rangeErr, "percent %d", tt.percent)
			assert.Equal(t, tt.percent, rangeErr.Percent)
		} else {
			assert.NoError(t, err, "percent %d", tt.percent)
		}
	}
}

func TestWindowContains(t *testing.T) {
	from := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)
	w := Window{From: from, To: to}

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{name: "inside window", now: from.Add(12 * time.Hour), want: true},
		{name: "exactly at From is active", now: from, want: true},
		{name: "exactly at To is active", now: to, want: true},
		{name: "one second before From", now: from.Add(-time.Second), want: false},
		{name: "one second after To", now: to.Add(time.Second), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.now))
		})
	}
}

func TestWindowContains_PointWindow(t *testing.T) {
	instant := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	w := Window{From: instant, To: instant}

	assert.True(t, w.Contains(instant))
	assert.False(t, w.Contains(instant.Add(time.Nanosecond)))
	assert.False(t, w.Contains(instant.Add(-time.Nanosecond)))
}

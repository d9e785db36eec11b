package slot

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name     string
		window   string
		duration int
		want     []string
	}{
		{
			name:     "exact fit",
			window:   "09:00-10:00",
			duration: 30,
			want:     []string{"09:00-09:30", "09:30-10:00"},
		},
		{
			name:     "remainder dropped",
			window:   "09:00-10:00",
			duration: 25,
			want:     []string{"09:00-09:25", "09:25-09:50"},
		},
		{
			name:     "slot longer than window",
			window:   "09:00-09:20",
			duration: 30,
			want:     []string{},
		},
		{
			name:     "runs to end of day",
			window:   "23:00-24:00",
			duration: 30,
			want:     []string{"23:00-23:30", "23:30-24:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Generate(timerange.MustParse(tt.window), tt.duration)
			require.NoError(t, err)

			strs := make([]string, 0, len(got))
			for _, r := range got {
				strs = append(strs, r.String())
			}
			assert.Equal(t, tt.want, strs)
		})
	}
}

func TestGenerate_EmptyWindow(t *testing.T) {
	window := timerange.Range{Start: timerange.MustParseClock("10:00"), End: timerange.MustParseClock("09:00")}
	got, err := Generate(window, 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate_InvalidDuration(t *testing.T) {
	for _, d := range []int{0, -15} {
		_, err := Generate(timerange.MustParse("09:00-10:00"), d)
		assert.True(t, errors.Is(err, apperrors.ErrBadRequestKind), "duration %d", d)
	}
}

func TestGenerate_DurationLongerThanWindow(t *testing.T) {
	for _, d := range []int{61, timerange.MinutesPerDay, math.MaxInt - 100, math.MaxInt} {
		got, err := Generate(timerange.MustParse("09:00-10:00"), d)
		require.NoError(t, err)
		assert.Empty(t, got, "duration %d", d)
	}
}

func TestGenerate_SlotsAreContiguousAndInside(t *testing.T) {
	window := timerange.MustParse("08:10-17:45")
	got, err := Generate(window, 20)
	require.NoError(t, err)
	require.NotEmpty(t, got)

	assert.Equal(t, window.Start, got[0].Start)
	for i, s := range got {
		assert.Equal(t, 20, s.Minutes())
		assert.True(t, window.Contains(s))
		if i > 0 {
			assert.Equal(t, got[i-1].End, s.Start)
		}
	}
	assert.True(t, got[len(got)-1].End.Add(20) > window.End)
}

func TestContains(t *testing.T) {
	window := timerange.MustParse("09:00-10:00")

	assert.True(t, Contains(window, 30, timerange.MustParse("09:30-10:00")))
	assert.False(t, Contains(window, 30, timerange.MustParse("09:15-09:45")), "off grid")
	assert.False(t, Contains(window, 30, timerange.MustParse("09:00-10:00")), "wrong length")
	assert.False(t, Contains(window, 30, timerange.MustParse("10:00-10:30")), "outside window")
	assert.False(t, Contains(window, 0, timerange.MustParse("09:00-09:30")))
}

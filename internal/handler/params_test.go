package handler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
)

func TestParseWeekday(t *testing.T) {
	tests := map[string]time.Weekday{
		"0":         time.Sunday,
		"1":         time.Monday,
		"6":         time.Saturday,
		"monday":    time.Monday,
		"Wednesday": time.Wednesday,
	}
	for raw, want := range tests {
		got, err := ParseWeekday(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"7", "-1", "mon", ""} {
		_, err := ParseWeekday(raw)
		assert.True(t, errors.Is(err, apperrors.ErrBadRequestKind), raw)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("date", "2026-10-19")
	require.NoError(t, err)
	assert.Equal(t, time.Monday, d.Weekday())

	_, err = ParseDate("date", "2026-02-30")
	assert.True(t, errors.Is(err, apperrors.ErrBadRequestKind))
}

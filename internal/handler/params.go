// Package handler holds request parsing shared by the HTTP handlers.
package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "github.com/jwalitptl/booking-api/pkg/errors"
	"github.com/jwalitptl/booking-api/pkg/timerange"
)

// UUIDParam parses a path parameter as a uuid.
func UUIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

// OptionalUUIDQuery returns uuid.Nil when the query parameter is absent.
func OptionalUUIDQuery(c *gin.Context, name string) (uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return id, nil
}

// ParseDate parses a YYYY-MM-DD value named field.
func ParseDate(field, raw string) (timerange.Date, error) {
	d, err := timerange.ParseDate(raw)
	if err != nil {
		return timerange.Date{}, apperrors.BadRequest(fmt.Sprintf("invalid %s, expected YYYY-MM-DD", field), err)
	}
	return d, nil
}

// OptionalDateQuery returns the zero Date when the query parameter is absent.
func OptionalDateQuery(c *gin.Context, name string) (timerange.Date, error) {
	raw := c.Query(name)
	if raw == "" {
		return timerange.Date{}, nil
	}
	return ParseDate(name, raw)
}

// ParseWeekday accepts 0-6 (Sunday first) or an English day name.
func ParseWeekday(raw string) (time.Weekday, error) {
	if n, err := strconv.Atoi(raw); err == nil {
		if n < 0 || n > 6 {
			return 0, apperrors.BadRequest(fmt.Sprintf("day of week %d out of range", n), nil)
		}
		return time.Weekday(n), nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(raw, d.String()) {
			return d, nil
		}
	}
	return 0, apperrors.BadRequest(fmt.Sprintf("invalid day of week %q", raw), nil)
}

package validation

import (
	"errors"
	"strings"
	"time"

	"github.com/kjstillabower/surfsup-climate-api/internal/models"
)

// ErrInvalidDate is returned when a path date does not match YYYY-MM-DD or is not a real calendar date.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses input with the YYYY-MM-DD layout. The input is not trimmed: surrounding
// whitespace, other separators, unpadded fields and out-of-range months or days are rejected.
// The returned date is in UTC.
func ParseDate(input string) (time.Time, error) {
	if len(input) != len(models.DateLayout) || strings.TrimSpace(input) != input {
		return time.Time{}, ErrInvalidDate
	}
	t, err := time.Parse(models.DateLayout, input)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseDateRange parses start and end. Fails if either is invalid; start after end is allowed.
func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	s, err := ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return s, e, nil
}

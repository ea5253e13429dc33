// Package resolve maps the bare clock tokens printed on the schedule onto
// absolute instants. The printed schedule omits AM/PM markers because the
// ship's day program runs from roughly 9am straight through to 3am; this
// package encodes the contextual reasoning a human reader applies to the
// same numbers.
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rockcal/rockcal/schema"
)

var (
	// ErrMalformedToken is returned when a time token has no leading H or
	// H:MM digit pattern, or its hour is outside the printed 12-hour range.
	ErrMalformedToken = errors.New("malformed time token")

	// ErrUnresolvable is returned when a token cannot be placed into any
	// disambiguation band, or when a range resolves to a zero- or
	// negative-length interval.
	ErrUnresolvable = errors.New("unresolvable time ambiguity")
)

var tokenRe = regexp.MustCompile(`^\s*(\d{1,2})(?::(\d{2}))?`)

// ParseToken extracts the leading H or H:MM pattern from a printed time
// token. No meridiem is assumed; that happens in Range.
func ParseToken(s string) (schema.ClockTime, error) {
	m := tokenRe.FindStringSubmatch(s)
	if m == nil {
		return -1, fmt.Errorf("%w: %q", ErrMalformedToken, s)
	}
	hh, err := strconv.Atoi(m[1])
	if err != nil {
		return -1, fmt.Errorf("%w: %q", ErrMalformedToken, s)
	}
	var mm int
	if m[2] != "" {
		if mm, err = strconv.Atoi(m[2]); err != nil {
			return -1, fmt.Errorf("%w: %q", ErrMalformedToken, s)
		}
	}
	t := schema.MakeClockTime(hh, mm)
	if !t.IsValid() {
		return -1, fmt.Errorf("%w: %q: hour must be 1-12", ErrMalformedToken, s)
	}
	return t, nil
}

// startHour resolves a printed start hour to 24-hour form.
//
// A start hour of 1-3 with no other context is read as afternoon. That is a
// heuristic, not a verified fact about the schedule's conventions: an
// isolated "2:00" start genuinely cannot be disambiguated, and afternoon is
// the guess that matches the published schedules seen so far.
func startHour(h int) (int, error) {
	switch {
	case h >= 9 && h <= 11:
		return h, nil // morning
	case h == 12:
		return 12, nil // noon
	case h >= 1 && h <= 3:
		return h + 12, nil // afternoon by default
	case h >= 4 && h <= 8:
		return h + 12, nil // evening
	case h == 0 || (h >= 13 && h <= 23):
		return h, nil // already 24-hour, pass through
	}
	return 0, fmt.Errorf("%w: start hour %d", ErrUnresolvable, h)
}

// endHour resolves a printed end hour to 24-hour form given the already
// resolved start hour of the same range.
func endHour(h, start int) (int, error) {
	switch {
	case h >= 9 && h <= 11:
		return h, nil // morning
	case h == 12:
		if start >= 20 {
			return 0, nil // evening show ending at "12:xx" ends at midnight
		}
		return 12, nil // noon
	case h >= 1 && h <= 3:
		if start >= 9 && start <= 12 {
			return h + 12, nil // morning start, afternoon end
		}
		return h, nil // afternoon/evening start, end is after midnight
	case h >= 4 && h <= 8:
		return h + 12, nil // evening
	case h == 0 || (h >= 13 && h <= 23):
		return h, nil // already 24-hour, pass through
	}
	return 0, fmt.Errorf("%w: end hour %d", ErrUnresolvable, h)
}

// Range resolves a printed start/end token pair for one event on one
// schedule day into concrete instants. The end instant rolls to the next
// calendar day when its resolved clock hour precedes the start's, or when it
// resolves to midnight after an evening start.
func Range(day schema.ScheduleDay, start, end schema.ClockTime) (time.Time, time.Time, error) {
	if !start.IsValid() || !end.IsValid() {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: invalid token", ErrMalformedToken)
	}

	sh, sm := start.Split()
	eh, em := end.Split()

	sh24, err := startHour(sh)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	eh24, err := endHour(eh, sh24)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	startDate := day.Date()
	endDate := startDate
	if eh24 < sh24 || (eh24 == 0 && sh24 >= 20) {
		endDate = endDate.AddDate(0, 0, 1)
	}

	st := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), sh24, sm, 0, 0, day.Loc)
	et := time.Date(endDate.Year(), endDate.Month(), endDate.Day(), eh24, em, 0, 0, day.Loc)

	if !et.After(st) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s-%s resolves to a zero-length interval", ErrUnresolvable, start, end)
	}
	return st, et, nil
}

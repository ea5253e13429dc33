package resolve

import (
	"errors"
	"testing"
	"time"

	"github.com/rockcal/rockcal/schema"
)

func TestParseToken(t *testing.T) {
	for _, tc := range []struct {
		A, B string
	}{
		// invalid
		{"", ""},            // empty
		{"abc", ""},         // no digits
		{"-8:00", ""},       // sign before digits
		{"0:30", ""},        // hour below printed range
		{"13:00", ""},       // hour above printed range
		{"99:99", ""},       // way out of range
		{"25", ""},          // bare hour out of range

		// valid
		{"8", "08:00"},       // bare hour
		{"8:00", "08:00"},
		{"8:15", "08:15"},
		{"12:59", "12:59"},
		{"1:00", "01:00"},
		{"  9:30", "09:30"},  // leading space
		{"1:0", "01:00"},     // single-digit minutes aren't minutes
		{"10:00pm", "10:00"}, // trailing text ignored, no meridiem parsed
		{"8:00- 9:15", "08:00"},
	} {
		c, err := ParseToken(tc.A)
		if tc.B == "" {
			if err == nil {
				t.Errorf("parse %q: expected error, got %q", tc.A, c)
			} else if !errors.Is(err, ErrMalformedToken) {
				t.Errorf("parse %q: expected ErrMalformedToken, got %v", tc.A, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("parse %q: unexpected error: %v", tc.A, err)
			continue
		}
		if s := c.String(); s != tc.B {
			t.Errorf("parse %q: expected %q, got %q", tc.A, tc.B, s)
		}
	}
}

func TestRange(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	day := schema.ScheduleDay{Year: 2026, Month: time.January, Day: 29, Loc: loc}

	for _, tc := range []struct {
		S, E string // printed tokens
		A, B string // resolved "2006-01-02 15:04", "" = error
	}{
		// morning hours stay morning, as start and as end
		{"9:00", "10:00", "2026-01-29 09:00", "2026-01-29 10:00"},
		{"10:00", "11:30", "2026-01-29 10:00", "2026-01-29 11:30"},
		{"9:15", "11:45", "2026-01-29 09:15", "2026-01-29 11:45"},

		// morning start, 1-3 end is afternoon on the same day
		{"10:00", "1:00", "2026-01-29 10:00", "2026-01-29 13:00"},
		{"11:00", "2:30", "2026-01-29 11:00", "2026-01-29 14:30"},
		{"12:00", "1:30", "2026-01-29 12:00", "2026-01-29 13:30"},
		{"9:00", "3:00", "2026-01-29 09:00", "2026-01-29 15:00"},

		// 4-8 are always evening
		{"4:30", "6:00", "2026-01-29 16:30", "2026-01-29 18:00"},
		{"7:00", "8:45", "2026-01-29 19:00", "2026-01-29 20:45"},

		// noon start
		{"12:00", "2:00", "2026-01-29 12:00", "2026-01-29 14:00"},

		// afternoon start (1-3 with no context reads as afternoon), end
		// after the start's afternoon resolution is after midnight
		{"1:00", "3:00", "2026-01-29 13:00", "2026-01-30 03:00"},
		{"2:00", "4:00", "2026-01-29 14:00", "2026-01-29 16:00"},

		// evening show ending in the small hours rolls to the next day
		{"8:00", "1:00", "2026-01-29 20:00", "2026-01-30 01:00"},
		{"8:00", "2:15", "2026-01-29 20:00", "2026-01-30 02:15"},
		{"5:00", "1:00", "2026-01-29 17:00", "2026-01-30 01:00"},

		// "ends at 12" after an evening start means midnight, not noon
		{"8:00", "12:00", "2026-01-29 20:00", "2026-01-30 00:00"},
		{"8:30", "12:30", "2026-01-29 20:30", "2026-01-30 00:30"},
		// before 8pm it still means noon
		{"10:00", "12:00", "2026-01-29 10:00", "2026-01-29 12:00"},
		{"11:00", "12:45", "2026-01-29 11:00", "2026-01-29 12:45"},

		// morning end before a morning start rolls over
		{"10:00", "9:00", "2026-01-29 10:00", "2026-01-30 09:00"},
		// 8 is always evening and 9 is always morning, so this crosses
		// midnight even though a human might read 8pm-9:15pm
		{"8:00", "9:15", "2026-01-29 20:00", "2026-01-30 09:15"},

		// zero-length intervals are resolution failures
		{"12:00", "12:00", "", ""},
		{"8:00", "8:00", "", ""},
	} {
		st, et, err := Range(day, mustToken(t, tc.S), mustToken(t, tc.E))
		if tc.A == "" {
			if err == nil {
				t.Errorf("resolve %s-%s: expected error, got %s - %s", tc.S, tc.E, st, et)
			} else if !errors.Is(err, ErrUnresolvable) {
				t.Errorf("resolve %s-%s: expected ErrUnresolvable, got %v", tc.S, tc.E, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("resolve %s-%s: unexpected error: %v", tc.S, tc.E, err)
			continue
		}
		const layout = "2006-01-02 15:04"
		if a := st.Format(layout); a != tc.A {
			t.Errorf("resolve %s-%s: start = %q, expected %q", tc.S, tc.E, a, tc.A)
		}
		if b := et.Format(layout); b != tc.B {
			t.Errorf("resolve %s-%s: end = %q, expected %q", tc.S, tc.E, b, tc.B)
		}
		if !et.After(st) {
			t.Errorf("resolve %s-%s: end not after start", tc.S, tc.E)
		}
		if st.Location() != loc || et.Location() != loc {
			t.Errorf("resolve %s-%s: wrong location", tc.S, tc.E)
		}
	}
}

// Resolution is a fixpoint: feeding an already resolved 24-hour value back
// through the banding under the same context leaves it unchanged.
func TestResolveIdempotent(t *testing.T) {
	for h := 1; h <= 12; h++ {
		sh, err := startHour(h)
		if err != nil {
			t.Fatalf("startHour(%d): %v", h, err)
		}
		if again, err := startHour(sh); err != nil || again != sh {
			t.Errorf("startHour(startHour(%d)) = %d, %v; expected %d", h, again, err, sh)
		}
		for ctx := 0; ctx <= 23; ctx++ {
			eh, err := endHour(h, ctx)
			if err != nil {
				t.Fatalf("endHour(%d, %d): %v", h, ctx, err)
			}
			if again, err := endHour(eh, ctx); err != nil || again != eh {
				t.Errorf("endHour(endHour(%d, %d)) = %d, %v; expected %d", h, ctx, again, err, eh)
			}
		}
	}
}

func TestEndHourBands(t *testing.T) {
	// For all start hours in [13,23], an end hour of 1-3 stays unchanged
	// (after midnight); for starts in [9,12] it moves to the afternoon.
	for e := 1; e <= 3; e++ {
		for s := 13; s <= 23; s++ {
			if h, err := endHour(e, s); err != nil || h != e {
				t.Errorf("endHour(%d, %d) = %d, %v; expected %d", e, s, h, err, e)
			}
		}
		for s := 9; s <= 12; s++ {
			if h, err := endHour(e, s); err != nil || h != e+12 {
				t.Errorf("endHour(%d, %d) = %d, %v; expected %d", e, s, h, err, e+12)
			}
		}
	}
}

func mustToken(t *testing.T, s string) schema.ClockTime {
	t.Helper()
	c, err := ParseToken(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return c
}

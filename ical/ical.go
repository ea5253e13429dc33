// Package ical renders a resolved snapshot as an iCalendar document that
// Google Calendar accepts: TZID-qualified local times plus an explicit
// VTIMEZONE definition carrying the UTC-offset transition rules.
package ical

import (
	"fmt"
	"os"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/rockcal/rockcal/schema"
)

// Options control the calendar-level properties.
type Options struct {
	// Name becomes X-WR-CALNAME.
	Name string
	// Timezone is the TZID used for event times.
	Timezone string
	// ProdID overrides the PRODID when non-empty.
	ProdID string
}

const dtLayout = "20060102T150405" // local time, qualified by TZID

// vtimezoneDoc is the America/New_York definition wrapped in a minimal
// calendar so it can be parsed once and spliced into generated calendars.
const vtimezoneDoc = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//rockcal//vtimezone//EN\r\n" +
	"BEGIN:VTIMEZONE\r\n" +
	"TZID:America/New_York\r\n" +
	"X-LIC-LOCATION:America/New_York\r\n" +
	"BEGIN:DAYLIGHT\r\n" +
	"TZOFFSETFROM:-0500\r\n" +
	"TZOFFSETTO:-0400\r\n" +
	"TZNAME:EDT\r\n" +
	"DTSTART:19700308T020000\r\n" +
	"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU\r\n" +
	"END:DAYLIGHT\r\n" +
	"BEGIN:STANDARD\r\n" +
	"TZOFFSETFROM:-0400\r\n" +
	"TZOFFSETTO:-0500\r\n" +
	"TZNAME:EST\r\n" +
	"DTSTART:19701101T020000\r\n" +
	"RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU\r\n" +
	"END:STANDARD\r\n" +
	"END:VTIMEZONE\r\n" +
	"END:VCALENDAR\r\n"

// Encode renders the snapshot as an ICS document. Line endings are CRLF as
// mandated by RFC 5545 (the library enforces this).
func Encode(snap *schema.Snapshot, opts Options) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetCalscale("GREGORIAN")
	if opts.ProdID != "" {
		cal.SetProductId(opts.ProdID)
	} else {
		cal.SetProductId("-//" + opts.Name + " Schedule//rockcal//EN")
	}
	cal.SetXWRCalName(opts.Name)
	cal.SetXWRTimezone(opts.Timezone)

	// Only America/New_York transition rules are embedded; other zones get
	// TZID references without a definition block.
	if opts.Timezone == "America/New_York" {
		tz, err := timezoneComponent()
		if err != nil {
			return "", err
		}
		cal.Components = append(cal.Components, tz)
	}

	tzid := &ics.KeyValues{Key: "TZID", Value: []string{opts.Timezone}}
	for _, e := range snap.Events {
		ve := cal.AddEvent(e.ID)
		ve.SetProperty(ics.ComponentPropertyDtStart, e.Start.Format(dtLayout), tzid)
		ve.SetProperty(ics.ComponentPropertyDtEnd, e.End.Format(dtLayout), tzid)
		ve.SetSummary(e.Name)
		if e.Venue != "" {
			ve.SetLocation(e.Venue)
		}
		if e.Theme != "" {
			ve.SetDescription(e.Theme)
		}
		if !snap.FetchedAt.IsZero() {
			ve.SetDtStampTime(snap.FetchedAt.UTC())
		} else {
			ve.SetDtStampTime(time.Now().UTC())
		}
	}
	return cal.Serialize(), nil
}

// WriteFile encodes the snapshot and writes it to path.
func WriteFile(path string, snap *schema.Snapshot, opts Options) error {
	doc, err := Encode(snap, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("write calendar: %w", err)
	}
	return nil
}

func timezoneComponent() (*ics.VTimezone, error) {
	src, err := ics.ParseCalendar(strings.NewReader(vtimezoneDoc))
	if err != nil {
		return nil, fmt.Errorf("parse vtimezone template: %w", err)
	}
	for _, c := range src.Components {
		if tz, ok := c.(*ics.VTimezone); ok {
			return tz, nil
		}
	}
	return nil, fmt.Errorf("vtimezone template has no VTIMEZONE component")
}

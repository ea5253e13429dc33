// Package schema defines the event model shared by the updater pipeline and
// the export tools: raw clock tokens as printed on the schedule, resolved
// events with stable identifiers, snapshots, and snapshot diffs.
package schema

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ClockTime is an hour:minute pair as printed on the schedule, in minutes
// since midnight, with no meridiem information attached. The printed schedule
// only ever uses 12-hour clock numerals, so a valid ClockTime has an hour
// component in [1,12].
type ClockTime int32

// MakeClockTime makes a ClockTime from a printed hour and minute. It returns
// an invalid ClockTime if hh is outside [1,12] or mm is outside [0,59].
func MakeClockTime(hh, mm int) ClockTime {
	if hh < 1 || hh > 12 || mm < 0 || mm > 59 {
		return -1
	}
	return ClockTime(hh*60 + mm)
}

func (t ClockTime) IsValid() bool {
	return t >= 0
}

// Split returns the printed hour and minute components.
func (t ClockTime) Split() (hh, mm int) {
	if t >= 0 {
		hh = int(t / 60)
		mm = int(t % 60)
	}
	return
}

func (t ClockTime) Hour() int {
	hh, _ := t.Split()
	return hh
}

func (t ClockTime) String() string {
	if !t.IsValid() {
		return "invalid"
	}
	var b strings.Builder
	hh, mm := t.Split()
	if hh >= 10 {
		b.WriteByte('0' + byte(hh/10))
	}
	b.WriteByte('0' + byte(hh%10))
	b.WriteByte(':')
	b.WriteByte('0' + byte(mm/10))
	b.WriteByte('0' + byte(mm%10))
	return b.String()
}

// ScheduleDay is one calendar day of the sailing in the schedule's timezone.
type ScheduleDay struct {
	Year  int
	Month time.Month
	Day   int
	Loc   *time.Location
}

func (d ScheduleDay) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// Date returns midnight at the start of the day.
func (d ScheduleDay) Date() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, d.Loc)
}

func (d ScheduleDay) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Date().Format("Monday, January 2")
}

// Event is a single resolved schedule entry. Start and End are concrete
// instants in the schedule's timezone, with End strictly after Start (End may
// be on the following calendar day). Events are never mutated once built; a
// changed event shows up in a diff under its identifier instead.
type Event struct {
	ID    string
	Name  string
	Start time.Time
	End   time.Time
	Venue string
	Theme string
}

// NormalizeName normalizes an event name for identity purposes: Unicode NFKC,
// lowercased, inner whitespace collapsed.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(name))), " ")
}

// MakeEventID derives the stable identifier used as the join key for diffing:
// the tag, a short hash of the normalized name and resolved start instant,
// and the calendar domain, in mail-style UID form. Only a start-time change
// produces a new identifier; end-only changes keep the identifier and are
// caught by comparing stored end values.
func MakeEventID(name string, start time.Time, tag, domain string) string {
	sum := md5.Sum([]byte(NormalizeName(name) + start.Format(time.RFC3339)))
	return tag + "-" + hex.EncodeToString(sum[:])[:8] + "@" + domain
}

// Fingerprint hashes raw page content for the cheap did-anything-change
// short-circuit. It is distinct from the per-event identifiers.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Snapshot is one full parsed-and-resolved schedule as of one fetch, in page
// order, paired with the fingerprint of the raw source it came from.
type Snapshot struct {
	FetchedAt   time.Time
	ContentHash string
	Events      []Event
}

// ByID returns the events keyed by identifier.
func (s *Snapshot) ByID() map[string]Event {
	m := make(map[string]Event, len(s.Events))
	for _, e := range s.Events {
		m[e.ID] = e
	}
	return m
}

// ChangeSet describes what changed between two snapshots. Initial marks the
// first run, where there is no previous snapshot to compare against and no
// per-event diff is computed.
type ChangeSet struct {
	Initial  bool
	Added    []string
	Removed  []string
	Modified []string
}

// Empty reports whether the set describes no changes at all. An initial
// publish is not empty.
func (c ChangeSet) Empty() bool {
	return !c.Initial && len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Diff compares a previous snapshot against the current one by event
// identifier. A nil prev means first run and yields the initial-publish
// sentinel. Added and modified names follow cur's event order, removed names
// follow prev's; name or venue changes with identical identifier and times
// are not detected.
func Diff(prev, cur *Snapshot) ChangeSet {
	if prev == nil {
		return ChangeSet{Initial: true}
	}

	var cs ChangeSet
	prevByID := prev.ByID()
	curByID := cur.ByID()

	for _, e := range cur.Events {
		old, ok := prevByID[e.ID]
		if !ok {
			cs.Added = append(cs.Added, e.Name)
			continue
		}
		if !old.Start.Equal(e.Start) || !old.End.Equal(e.End) {
			cs.Modified = append(cs.Modified, e.Name)
		}
	}
	for _, e := range prev.Events {
		if _, ok := curByID[e.ID]; !ok {
			cs.Removed = append(cs.Removed, e.Name)
		}
	}
	return cs
}

// Package extract turns the schedule page into resolved events: it flattens
// the HTML into text lines, walks them while tracking the current day and
// theme, and hands every event candidate to the resolver.
package extract

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/rockcal/rockcal/resolve"
	"github.com/rockcal/rockcal/schema"
)

// Config carries the injectable tables the scanner needs. Keeping these out
// of the code means a new sailing's layout only requires a config change.
type Config struct {
	// Days maps lowercase printed day phrases ("thursday, january 29") to
	// concrete schedule days.
	Days map[string]schema.ScheduleDay

	// Venues maps lowercase venue keywords to the full deck/location string
	// attached to matching events.
	Venues map[string]string

	// NoiseKeywords are lowercase fragments of table-header rows that the
	// line pattern would otherwise mistake for short events.
	NoiseKeywords []string

	// UIDTag and UIDDomain parameterize event identifiers.
	UIDTag    string
	UIDDomain string
}

// Lines flattens an HTML document into its text-node contents, one trimmed
// line per text chunk, top to bottom. Script and style bodies are dropped.
func Lines(r io.Reader) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var lines []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			for part := range strings.SplitSeq(n.Data, "\n") {
				lines = append(lines, strings.TrimSpace(part))
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Selection.Nodes {
		walk(n)
	}
	return lines, nil
}

var (
	eventRe = regexp.MustCompile(`^(.+?)\s+(\d{1,2}:\d{2})\s*[-–—]\s*(\d{1,2}:\d{2})\s*$`)
	timeRe  = regexp.MustCompile(`\d{1,2}:\d{2}`)
)

// Events scans the ordered text lines and returns the resolved events in
// page order. The current-day and current-theme context is local to this
// call. Candidates whose times fail to parse or resolve are logged and
// dropped; a single bad line never aborts extraction.
func Events(cfg Config, lines []string) []schema.Event {
	var (
		events   []schema.Event
		curDay   schema.ScheduleDay
		curTheme string
	)
	venueKeys := slices.Sorted(maps.Keys(cfg.Venues))

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		if day, ok := matchDay(cfg.Days, lower); ok {
			curDay = day
			curTheme = themeAhead(cfg.Days, lines, i)
			continue
		}

		m := eventRe.FindStringSubmatch(line)
		if m == nil || curDay.IsZero() {
			continue
		}
		name := strings.TrimSpace(m[1])
		if isNoise(cfg.NoiseKeywords, name) {
			continue
		}

		start, err := resolve.ParseToken(m[2])
		if err != nil {
			slog.Warn("dropping candidate", "name", name, "error", err)
			continue
		}
		end, err := resolve.ParseToken(m[3])
		if err != nil {
			slog.Warn("dropping candidate", "name", name, "error", err)
			continue
		}
		st, et, err := resolve.Range(curDay, start, end)
		if err != nil {
			slog.Warn("dropping candidate", "name", name, "day", curDay.String(), "error", err)
			continue
		}

		var venue string
		for _, k := range venueKeys {
			if strings.Contains(lower, k) {
				venue = cfg.Venues[k]
				break
			}
		}

		events = append(events, schema.Event{
			ID:    schema.MakeEventID(name, st, cfg.UIDTag, cfg.UIDDomain),
			Name:  name,
			Start: st,
			End:   et,
			Venue: venue,
			Theme: curTheme,
		})
	}
	return events
}

func matchDay(days map[string]schema.ScheduleDay, lower string) (schema.ScheduleDay, bool) {
	for phrase, day := range days {
		if strings.Contains(lower, phrase) {
			return day, true
		}
	}
	return schema.ScheduleDay{}, false
}

// themeAhead finds the day's theme: the first non-empty line within the next
// four that is neither another day header nor carries a time token.
func themeAhead(days map[string]schema.ScheduleDay, lines []string, i int) string {
	for j := i + 1; j < min(i+5, len(lines)); j++ {
		next := strings.TrimSpace(lines[j])
		if next == "" {
			continue
		}
		if _, ok := matchDay(days, strings.ToLower(next)); ok {
			continue
		}
		if timeRe.MatchString(next) {
			continue
		}
		return next
	}
	return ""
}

// isNoise reports whether a candidate name is a venue/table-header row. Long
// names are kept even when they mention a venue, since real event names do
// too ("Pool Deck Party with ...").
func isNoise(keywords []string, name string) bool {
	if len(name) >= 20 {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

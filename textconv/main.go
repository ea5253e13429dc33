// Command textconv formats a generated ICS calendar in a human-readable way
// suitable for use with "git diff". The output may not be stable across
// versions.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/template"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/mitchellh/go-wordwrap"
)

var tmpl = template.Must(template.New("").Funcs(template.FuncMap{
	"wrap": func(n uint, s string) string {
		return wordwrap.WrapString(s, n)
	},
	"prefix": func(p, s string) string {
		var b strings.Builder
		for l := range strings.Lines(s) {
			if strings.TrimSpace(l) != "" {
				b.WriteString(p)
			}
			b.WriteString(l)
		}
		return b.String()
	},
	"clock": func(t time.Time) string {
		return t.Format("15:04")
	},
	"trim": strings.TrimSpace,
}).Parse(`
{{- .Name }}
{{- range $d := .Days }}

====== {{ $d.Date }}

{{- range $e := .Events }}
~ [{{ clock $e.Start }} - {{ clock $e.End }}{{ if $e.NextDay }} >{{ end }}] {{ $e.Summary }}{{ with $e.Location }} @ {{ . }}{{ end }}
{{- with $e.Description }}
{{ . | trim | wrap 100 | prefix "    " }}
{{- end }}
{{- end }}
{{- end }}
`))

type calendarView struct {
	Name string
	Days []dayView
}

type dayView struct {
	Date   string
	Events []eventView
}

type eventView struct {
	Summary     string
	Location    string
	Description string
	Start       time.Time
	End         time.Time
	NextDay     bool // end is on the day after the start
}

func main() {
	input := os.Stdin
	if len(os.Args) > 1 {
		f, err := os.Open(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		input = f
	}
	if len(os.Args) > 2 {
		fmt.Fprintf(os.Stderr, "error: too many arguments\n")
		os.Exit(1)
	}

	if err := run(input, os.Stdout); err != nil {
		fmt.Println()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(r io.Reader, w io.Writer) error {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return fmt.Errorf("parse calendar: %w", err)
	}

	view := calendarView{Name: calName(cal)}

	var events []eventView
	for _, ve := range cal.Events() {
		e := eventView{
			Summary:     propValue(ve, ics.ComponentPropertySummary),
			Location:    propValue(ve, ics.ComponentPropertyLocation),
			Description: propValue(ve, ics.ComponentPropertyDescription),
		}
		if e.Start, err = ve.GetStartAt(); err != nil {
			return fmt.Errorf("event %q: %w", e.Summary, err)
		}
		if e.End, err = ve.GetEndAt(); err != nil {
			return fmt.Errorf("event %q: %w", e.Summary, err)
		}
		e.NextDay = e.End.YearDay() != e.Start.YearDay()
		events = append(events, e)
	}
	slices.SortStableFunc(events, func(a, b eventView) int {
		return a.Start.Compare(b.Start)
	})

	for _, e := range events {
		date := e.Start.Format("Monday, January 2")
		if n := len(view.Days); n == 0 || view.Days[n-1].Date != date {
			view.Days = append(view.Days, dayView{Date: date})
		}
		d := &view.Days[len(view.Days)-1]
		d.Events = append(d.Events, e)
	}

	return tmpl.Execute(w, &view)
}

func propValue(ve *ics.VEvent, p ics.ComponentProperty) string {
	if prop := ve.GetProperty(p); prop != nil {
		return prop.Value
	}
	return ""
}

func calName(cal *ics.Calendar) string {
	for _, p := range cal.CalendarProperties {
		if p.IANAToken == "X-WR-CALNAME" {
			return p.Value
		}
	}
	return "(unnamed calendar)"
}

// Package config holds the per-sailing configuration: where the schedule
// lives, which timezone it is printed in, the day-name table, and the venue
// tables the extractor filters with. All of it is data, not code, so a new
// sailing only needs a new config file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rockcal/rockcal/schema"
)

// Day maps one printed day-header phrase to a calendar date.
type Day struct {
	// Name is the lowercase phrase as printed, e.g. "thursday, january 29".
	Name string `yaml:"name"`
	// Date is the calendar date in YYYY-MM-DD form.
	Date string `yaml:"date"`
}

// Config is the top-level configuration.
type Config struct {
	// ScheduleURL is the printable schedule page to scrape.
	ScheduleURL string `yaml:"schedule_url"`

	// Timezone is the IANA timezone the schedule is printed in.
	Timezone string `yaml:"timezone"`

	// CalendarName is the X-WR-CALNAME of the generated calendar.
	CalendarName string `yaml:"calendar_name"`

	// UIDTag and UIDDomain parameterize event UIDs ("tag-xxxxxxxx@domain").
	UIDTag    string `yaml:"uid_tag"`
	UIDDomain string `yaml:"uid_domain"`

	// Days is the sailing's day table, in sailing order.
	Days []Day `yaml:"days"`

	// Venues maps lowercase venue keywords to full deck/location strings.
	Venues map[string]string `yaml:"venues"`

	// NoiseKeywords mark short table-header rows that are not events.
	NoiseKeywords []string `yaml:"noise_keywords"`

	// ICSPath is where the generated calendar is written.
	ICSPath string `yaml:"ics_path"`

	// StatePath is the snapshot/fingerprint database used between runs.
	StatePath string `yaml:"state_path"`
}

// DefaultConfig returns the configuration for the current sailing.
func DefaultConfig() *Config {
	return &Config{
		ScheduleURL:  "https://www.therockboat.com/schedule/print/",
		Timezone:     "America/New_York",
		CalendarName: "The Rock Boat XXVI",
		UIDTag:       "trb26",
		UIDDomain:    "rockboat.com",
		Days: []Day{
			{Name: "thursday, january 29", Date: "2026-01-29"},
			{Name: "friday, january 30", Date: "2026-01-30"},
			{Name: "saturday, january 31", Date: "2026-01-31"},
			{Name: "sunday, february 1", Date: "2026-02-01"},
			{Name: "monday, february 2", Date: "2026-02-02"},
			{Name: "tuesday, february 3", Date: "2026-02-03"},
			{Name: "wednesday, february 4", Date: "2026-02-04"},
		},
		Venues: map[string]string{
			"pool deck":      "Pool Deck - Deck 12, MID",
			"stardust":       "Stardust Theater - Decks 6 & 7, FWD",
			"spinnaker":      "Spinnaker Lounge - Deck 13, FWD",
			"atrium":         "Atrium - Deck 7, MID",
			"magnum's":       "Magnum's - Deck 6, MID",
			"sports court":   "Sports Court - Deck 13, AFT",
			"bliss lounge":   "Bliss Lounge - Deck 7, AFT",
			"summer palace":  "Summer Palace - Deck 7, AFT",
			"great outdoors": "Great Outdoors - Deck 12, AFT",
			"maltings":       "Maltings - Deck 6, MID",
		},
		NoiseKeywords: []string{
			"pool deck", "stardust", "spinnaker", "atrium",
			"magnum's", "sports court", "deck",
		},
		ICSPath:   "rockboat_schedule.ics",
		StatePath: "schedule_state.db",
	}
}

// Normalize fills missing values with defaults so partially-filled configs
// still behave.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.ScheduleURL == "" {
		c.ScheduleURL = d.ScheduleURL
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.CalendarName == "" {
		c.CalendarName = d.CalendarName
	}
	if c.UIDTag == "" {
		c.UIDTag = d.UIDTag
	}
	if c.UIDDomain == "" {
		c.UIDDomain = d.UIDDomain
	}
	if len(c.Days) == 0 {
		c.Days = d.Days
	}
	if c.Venues == nil {
		c.Venues = d.Venues
	}
	if c.NoiseKeywords == nil {
		c.NoiseKeywords = d.NoiseKeywords
	}
	if c.ICSPath == "" {
		c.ICSPath = d.ICSPath
	}
	if c.StatePath == "" {
		c.StatePath = d.StatePath
	}
}

// Load loads configuration from a YAML file. A missing file is first-run
// behavior: the defaults are written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()

	if _, err := cfg.DayTable(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration atomically (temp file + rename).
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".rockcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Location resolves the configured IANA timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DayTable parses and validates the day table: dates must parse, and the
// days must be contiguous and strictly increasing in the listed order.
func (c *Config) DayTable() (map[string]schema.ScheduleDay, error) {
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	if len(c.Days) == 0 {
		return nil, errors.New("day table is empty")
	}

	days := make(map[string]schema.ScheduleDay, len(c.Days))
	var prev time.Time
	for i, d := range c.Days {
		if d.Name == "" {
			return nil, fmt.Errorf("day %d: name is empty", i+1)
		}
		t, err := time.ParseInLocation("2006-01-02", d.Date, loc)
		if err != nil {
			return nil, fmt.Errorf("day %q: parse date: %w", d.Name, err)
		}
		if i > 0 && !t.Equal(prev.AddDate(0, 0, 1)) {
			return nil, fmt.Errorf("day %q: dates must be contiguous and strictly increasing", d.Name)
		}
		prev = t
		days[d.Name] = schema.ScheduleDay{
			Year:  t.Year(),
			Month: t.Month(),
			Day:   t.Day(),
			Loc:   loc,
		}
	}
	return days, nil
}

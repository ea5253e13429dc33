// Command updater runs one scrape cycle: it fetches the printed schedule,
// short-circuits if the page is byte-identical to last run, otherwise
// extracts and resolves the events, regenerates the ICS calendar, persists
// the snapshot, and notifies about the diff.
//
// Exit status is non-zero only when no valid snapshot could be produced
// (fetch, state, or output failures). Per-event resolution problems and
// notification delivery failures are logged and do not affect the status.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rockcal/rockcal/config"
	"github.com/rockcal/rockcal/extract"
	"github.com/rockcal/rockcal/ical"
	"github.com/rockcal/rockcal/internal/httpcache"
	"github.com/rockcal/rockcal/notify"
	"github.com/rockcal/rockcal/schema"
	"github.com/rockcal/rockcal/store"
)

var (
	configPath = flag.String("config", "config.yaml", "configuration file (created with defaults if missing)")
	cacheDir   = flag.String("cache-dir", "", "cache fetched pages in the specified directory")
	noFetch    = flag.Bool("no-fetch", false, "don't fetch pages not in cache")
	force      = flag.Bool("force", false, "re-parse even if the page fingerprint is unchanged")
)

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	days, err := cfg.DayTable()
	if err != nil {
		return fmt.Errorf("day table: %w", err)
	}

	slog.Info("fetching schedule", "url", cfg.ScheduleURL)
	page, err := fetchPage(ctx, cfg.ScheduleURL)
	if err != nil {
		return fmt.Errorf("fetch schedule: %w", err)
	}

	st, err := store.Open(cfg.StatePath, loc)
	if err != nil {
		return err
	}
	defer st.Close()

	hash := schema.Fingerprint(page)
	oldHash, err := st.ContentHash()
	if err != nil {
		return fmt.Errorf("load fingerprint: %w", err)
	}
	if hash == oldHash && !*force {
		slog.Info("no changes detected", "hash", hash[:12])
		return reportChanges(false)
	}

	slog.Info("changes detected, parsing schedule")
	lines, err := extract.Lines(bytes.NewReader(page))
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	events := extract.Events(extract.Config{
		Days:          days,
		Venues:        cfg.Venues,
		NoiseKeywords: cfg.NoiseKeywords,
		UIDTag:        cfg.UIDTag,
		UIDDomain:     cfg.UIDDomain,
	}, lines)
	slog.Info("parsed events", "count", len(events))

	cur := &schema.Snapshot{
		FetchedAt:   time.Now().In(loc),
		ContentHash: hash,
		Events:      events,
	}

	prev, err := st.Snapshot()
	if err != nil {
		return err
	}
	cs := schema.Diff(prev, cur)
	if cs.Initial {
		slog.Info("initial publish")
	} else {
		slog.Info("computed diff",
			"added", len(cs.Added), "removed", len(cs.Removed), "modified", len(cs.Modified))
	}

	if err := ical.WriteFile(cfg.ICSPath, cur, ical.Options{
		Name:     cfg.CalendarName,
		Timezone: cfg.Timezone,
	}); err != nil {
		return err
	}
	slog.Info("calendar written", "path", cfg.ICSPath)

	if err := st.Save(cur); err != nil {
		return err
	}

	if cs.Empty() {
		slog.Info("page changed but no event-level changes, skipping notification")
	} else {
		n := &notify.Notifier{
			WebhookURL:  os.Getenv("SLACK_WEBHOOK_URL"),
			ScheduleURL: cfg.ScheduleURL,
			CalendarURL: os.Getenv("CALENDAR_URL"),
		}
		if err := n.Send(ctx, cs); err != nil {
			slog.Error("notification failed", "error", err)
		}
	}

	slog.Info("update complete")
	return reportChanges(!cs.Empty())
}

func fetchPage(ctx context.Context, u string) ([]byte, error) {
	client := &http.Client{Timeout: 30 * time.Second}
	if *cacheDir != "" {
		if err := os.Mkdir(*cacheDir, 0o777); err != nil && !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
		t := &httpcache.Transport{Path: *cacheDir, Next: http.DefaultTransport}
		if *noFetch {
			t.Next = nil
		}
		client.Transport = t
	} else if *noFetch {
		return nil, fmt.Errorf("-no-fetch requires -cache-dir")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "rockcal-bot/1.0 (+https://github.com/rockcal/rockcal)")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("response status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// reportChanges appends the changes_detected flag to the file named by
// GITHUB_OUTPUT, when set, for the workflow that publishes the calendar.
func reportChanges(changed bool) error {
	out := os.Getenv("GITHUB_OUTPUT")
	if out == "" {
		return nil
	}
	f, err := os.OpenFile(out, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write GITHUB_OUTPUT: %w", err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "changes_detected=%t\n", changed); err != nil {
		return fmt.Errorf("write GITHUB_OUTPUT: %w", err)
	}
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rockcal/rockcal/schema"
)

func TestSummary(t *testing.T) {
	for _, tc := range []struct {
		Name string
		CS   schema.ChangeSet
		Want string
	}{
		{
			"initial",
			schema.ChangeSet{Initial: true},
			"Initial schedule published",
		},
		{
			"added only",
			schema.ChangeSet{Added: []string{"Sister Hazel", "Tonic"}},
			"*Added:* Sister Hazel, Tonic",
		},
		{
			"all categories",
			schema.ChangeSet{
				Added:    []string{"A"},
				Removed:  []string{"B"},
				Modified: []string{"C"},
			},
			"*Added:* A\n*Removed:* B\n*Modified:* C",
		},
		{
			"truncated",
			schema.ChangeSet{Added: []string{"A", "B", "C", "D", "E", "F", "G"}},
			"*Added:* A, B, C, D, E\n  ...and 2 more",
		},
		{
			"empty",
			schema.ChangeSet{},
			"Schedule content has changed",
		},
	} {
		if got := Summary(tc.CS); got != tc.Want {
			t.Errorf("%s: summary = %q, expected %q", tc.Name, got, tc.Want)
		}
	}
}

func TestSendSkips(t *testing.T) {
	var posts int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts++
	}))
	defer srv.Close()

	// no webhook configured
	n := &Notifier{}
	if err := n.Send(context.Background(), schema.ChangeSet{Added: []string{"A"}}); err != nil {
		t.Errorf("unconfigured send should be a no-op, got %v", err)
	}

	// initial publish
	n = &Notifier{WebhookURL: srv.URL}
	if err := n.Send(context.Background(), schema.ChangeSet{Initial: true}); err != nil {
		t.Errorf("initial send should be a no-op, got %v", err)
	}

	if posts != 0 {
		t.Errorf("expected no webhook posts, got %d", posts)
	}
}

func TestSendPayload(t *testing.T) {
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ = io.ReadAll(r.Body)
	}))
	defer srv.Close()

	n := &Notifier{
		WebhookURL:  srv.URL,
		ScheduleURL: "https://www.therockboat.com/schedule/print/",
		CalendarURL: "https://example.com/rockboat_schedule.ics",
	}
	cs := schema.ChangeSet{Added: []string{"Sister Hazel"}, Modified: []string{"Late Show"}}
	if err := n.Send(context.Background(), cs); err != nil {
		t.Fatalf("send: %v", err)
	}

	var payload struct {
		Text   string `json:"text"`
		Blocks []struct {
			Type     string `json:"type"`
			Elements []struct {
				URL string `json:"url"`
			} `json:"elements"`
		} `json:"blocks"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("payload is not json: %v", err)
	}

	if strings.Contains(payload.Text, "*") {
		t.Errorf("fallback text should not carry mrkdwn markers: %q", payload.Text)
	}
	if !strings.Contains(payload.Text, "Sister Hazel") {
		t.Errorf("fallback text missing names: %q", payload.Text)
	}

	var types []string
	for _, b := range payload.Blocks {
		types = append(types, b.Type)
	}
	if want := []string{"header", "section", "actions"}; strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("blocks = %v, expected %v", types, want)
	}
	if n := len(payload.Blocks[2].Elements); n != 2 {
		t.Errorf("expected both link buttons, got %d", n)
	}
}

func TestSendFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := &Notifier{WebhookURL: srv.URL}
	err := n.Send(context.Background(), schema.ChangeSet{Added: []string{"A"}})
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Errorf("expected a status error, got %v", err)
	}
}

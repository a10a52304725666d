package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"calgrid/internal/model"
)

const simpleFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:single@example.com\r\n" +
	"SUMMARY:One-off\r\n" +
	"DTSTART:20201005T100000Z\r\n" +
	"DTEND:20201005T110000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const recurringFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly@example.com\r\n" +
	"SUMMARY:Weekly sync\r\n" +
	"DTSTART:20201005T090000Z\r\n" +
	"DTEND:20201005T093000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=10\r\n" +
	"EXDATE:20201019T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

const allDayFeed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calgrid//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:holiday@example.com\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20201007\r\n" +
	"DTEND;VALUE=DATE:20201008\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func utcRange(startY int, startM time.Month, startD, days int) model.DateInterval {
	start := time.Date(startY, startM, startD, 0, 0, 0, 0, time.UTC)
	return model.DateInterval{Start: start, End: start.AddDate(0, 0, days)}
}

func TestParseSingleEvent(t *testing.T) {
	t.Parallel()
	events, err := Parse(Source{ID: "test"}, []byte(simpleFeed))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Parse() produced %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.UID != "single@example.com" || ev.Summary != "One-off" {
		t.Errorf("unexpected event %+v", ev)
	}
	if ev.AllDay || ev.RawRRule != "" || ev.IsOverride {
		t.Errorf("event should be a plain timed one-off: %+v", ev)
	}
	want := time.Date(2020, time.October, 5, 10, 0, 0, 0, time.UTC)
	if !ev.Start.Equal(want) {
		t.Errorf("Start = %v, want %v", ev.Start, want)
	}
}

func TestParseAllDayDetection(t *testing.T) {
	t.Parallel()
	events, err := Parse(Source{ID: "test"}, []byte(allDayFeed))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 1 || !events[0].AllDay {
		t.Fatalf("expected one all-day event, got %+v", events)
	}
}

func TestParseEmptyBody(t *testing.T) {
	t.Parallel()
	if _, err := Parse(Source{ID: "test"}, nil); err == nil {
		t.Error("Parse(empty) expected error")
	}
}

func TestExpandSingleInsideRange(t *testing.T) {
	t.Parallel()
	raw, err := Parse(Source{ID: "feed1"}, []byte(simpleFeed))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	got, err := Expand(raw, ExpandConfig{
		DisplayLocation: time.UTC,
		Range:           utcRange(2020, time.October, 1, 14),
	})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Expand() produced %d events, want 1", len(got))
	}
	ev := got[0]
	if ev.Title != "One-off" || ev.Source != "feed1" {
		t.Errorf("unexpected event %+v", ev)
	}

	// Outside the range nothing comes back.
	got, err = Expand(raw, ExpandConfig{
		DisplayLocation: time.UTC,
		Range:           utcRange(2021, time.March, 1, 7),
	})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Expand() outside range produced %d events, want 0", len(got))
	}
}

func TestExpandWeeklyRecurrenceWithExdate(t *testing.T) {
	t.Parallel()
	raw, err := Parse(Source{ID: "feed1"}, []byte(recurringFeed))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	// Four Mondays Oct 5..Oct 26; Oct 19 is EXDATEd out.
	got, err := Expand(raw, ExpandConfig{
		DisplayLocation: time.UTC,
		Range:           utcRange(2020, time.October, 5, 28),
	})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expand() produced %d occurrences, want 3", len(got))
	}

	seen := map[string]bool{}
	for _, ev := range got {
		seen[ev.Start.Format("2006-01-02")] = true
		if dur := ev.End.Sub(ev.Start); dur != 30*time.Minute {
			t.Errorf("occurrence duration = %v, want 30m", dur)
		}
	}
	for _, day := range []string{"2020-10-05", "2020-10-12", "2020-10-26"} {
		if !seen[day] {
			t.Errorf("missing occurrence on %s (got %v)", day, seen)
		}
	}
	if seen["2020-10-19"] {
		t.Error("EXDATE occurrence 2020-10-19 should be excluded")
	}
}

func TestExpandOccurrenceIDsAreDistinct(t *testing.T) {
	t.Parallel()
	raw, _ := Parse(Source{ID: "feed1"}, []byte(recurringFeed))
	got, err := Expand(raw, ExpandConfig{
		DisplayLocation: time.UTC,
		Range:           utcRange(2020, time.October, 5, 28),
	})
	if err != nil {
		t.Fatalf("Expand() error = %v", err)
	}
	ids := map[string]bool{}
	for _, ev := range got {
		if ids[ev.ID] {
			t.Fatalf("duplicate occurrence id %q", ev.ID)
		}
		ids[ev.ID] = true
	}
}

func TestExpandRejectsInvertedRange(t *testing.T) {
	t.Parallel()
	iv := utcRange(2020, time.October, 5, 7)
	if _, err := Expand(nil, ExpandConfig{Range: model.DateInterval{Start: iv.End, End: iv.Start}}); err == nil {
		t.Error("Expand with inverted range expected error")
	}
}

func TestFetcherCachesWithETag(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(simpleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "test", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("first FetchOne() error = %v", err)
	}
	if first.FromCache {
		t.Error("first fetch should not come from cache")
	}

	second, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("second FetchOne() error = %v", err)
	}
	if !second.FromCache {
		t.Error("second fetch should reuse the cached body on 304")
	}
	if string(second.Body) != simpleFeed {
		t.Error("cached body does not match the original feed")
	}
	if hits.Load() != 2 {
		t.Errorf("server hits = %d, want 2", hits.Load())
	}
}

func TestFetcherFallsBackToCacheOnServerError(t *testing.T) {
	t.Parallel()
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(simpleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	src := Source{ID: "test", URL: srv.URL}

	if _, err := f.FetchOne(context.Background(), src); err != nil {
		t.Fatalf("seed fetch error = %v", err)
	}

	fail.Store(true)
	res, err := f.FetchOne(context.Background(), src)
	if err != nil {
		t.Fatalf("FetchOne() during outage error = %v", err)
	}
	if !res.FromCache || string(res.Body) != simpleFeed {
		t.Errorf("outage fetch should fall back to cached body, got FromCache=%v", res.FromCache)
	}
}

func TestLoadPipeline(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(recurringFeed))
	}))
	defer srv.Close()

	events, err := Load(context.Background(), NewFetcher(t.TempDir()),
		[]Source{{ID: "feed1", URL: srv.URL}},
		ExpandConfig{DisplayLocation: time.UTC, Range: utcRange(2020, time.October, 5, 28)})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(events) != 3 {
		t.Errorf("Load() produced %d events, want 3", len(events))
	}
	for _, ev := range events {
		if ev.Source != "feed1" {
			t.Errorf("event source = %q, want feed1", ev.Source)
		}
	}
}

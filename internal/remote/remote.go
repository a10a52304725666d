// Package remote fetches events overlapping the visible range from an
// HTTP JSON source and normalizes arbitrary payload shapes into canonical
// events.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Record is one raw remote payload record before normalization.
type Record map[string]any

// QueryBuilder produces the query string for a range request.
type QueryBuilder func(iv model.DateInterval) url.Values

// Transform converts a raw record into an Event. Returning false drops
// the record.
type Transform func(rec Record) (model.Event, bool)

// Options configures a Controller.
type Options struct {
	// BaseURL is the events endpoint, e.g. "https://api.example.com/events".
	BaseURL string

	// UserID, when non-empty, is appended to the default query.
	UserID string

	// Query overrides the default start/end/userId query builder.
	Query QueryBuilder

	// Normalize overrides the default record mapper.
	Normalize Transform

	// RefetchOnNavigate opts in to refetching when the visible range
	// changes. Off by default: the initially fetched set is kept and only
	// filtered client-side.
	RefetchOnNavigate bool

	// Client defaults to an http.Client with a 15s timeout.
	Client *http.Client
}

// Controller issues range fetches against the remote source, owns the
// Idle -> Loading -> {Ready, Failed} state machine, and guards against
// stale completions with a request-generation counter: any completion
// whose generation no longer matches the current one is discarded.
type Controller struct {
	opts   Options
	client *http.Client

	mu         sync.Mutex
	generation uint64
	closed     bool
	fetched    bool
	status     model.FetchStatus
	events     []model.Event
}

// NewController builds a Controller for the given options.
func NewController(opts Options) *Controller {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Controller{opts: opts, client: client}
}

// Status returns a snapshot of the fetch state machine.
func (c *Controller) Status() model.FetchStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Events returns the last successfully fetched set. A failed refresh never
// clears it; the engine keeps serving what it already has.
func (c *Controller) Events() []model.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Event, len(c.events))
	copy(out, c.events)
	return out
}

// ShouldRefetch reports whether a refresh should run. The first call in a
// controller's lifetime always fetches; after that, navigation triggers a
// refetch only when RefetchOnNavigate is set.
func (c *Controller) ShouldRefetch() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	return !c.fetched || c.opts.RefetchOnNavigate
}

// Close invalidates all outstanding generations; completions arriving
// afterwards are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.generation++
	c.mu.Unlock()
}

// Refresh fetches the events overlapping iv. On success the internal set
// and state are updated and the events returned; on failure the state
// becomes Failed with a message and the previous set stays in place.
// A Refresh started after this one bumps the generation, so a slow
// response from an older Refresh can never overwrite newer state.
func (c *Controller) Refresh(ctx context.Context, iv model.DateInterval) ([]model.Event, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("remote: controller closed")
	}
	c.generation++
	gen := c.generation
	c.status = model.FetchStatus{State: model.FetchLoading}
	c.mu.Unlock()

	events, err := c.fetch(ctx, iv)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		// A newer Refresh (or Close) superseded this one; drop the result.
		appLog.Debug("remote: discarding stale fetch result", "generation", gen)
		return nil, errors.New("remote: superseded by newer request")
	}
	c.fetched = true
	if err != nil {
		c.status = model.FetchStatus{State: model.FetchFailed, Err: err.Error()}
		appLog.Error("remote: fetch failed", err, "start", iv.Start.Format(time.RFC3339), "end", iv.End.Format(time.RFC3339))
		return nil, err
	}
	c.status = model.FetchStatus{State: model.FetchReady}
	c.events = events
	appLog.Info("remote: fetch success", "count", len(events))
	out := make([]model.Event, len(events))
	copy(out, events)
	return out, nil
}

func (c *Controller) fetch(ctx context.Context, iv model.DateInterval) ([]model.Event, error) {
	reqURL, err := c.requestURL(iv)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("remote: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	records, err := decodeRecords(body)
	if err != nil {
		return nil, err
	}
	return c.normalizeAll(records), nil
}

func (c *Controller) requestURL(iv model.DateInterval) (string, error) {
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("remote: bad base URL: %w", err)
	}

	var q url.Values
	if c.opts.Query != nil {
		q = c.opts.Query(iv)
	} else {
		q = url.Values{}
		q.Set("start", iv.Start.Format(time.RFC3339))
		q.Set("end", iv.End.Format(time.RFC3339))
		if c.opts.UserID != "" {
			q.Set("userId", c.opts.UserID)
		}
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func (c *Controller) normalizeAll(records []Record) []model.Event {
	transform := c.opts.Normalize
	if transform == nil {
		transform = NormalizeRecord
	}
	events := make([]model.Event, 0, len(records))
	for _, rec := range records {
		ev, ok := transform(rec)
		if !ok {
			appLog.Debug("remote: dropping unresolvable record", "record", fmt.Sprint(rec))
			continue
		}
		ev.Source = "remote"
		events = append(events, ev)
	}
	return events
}

// decodeRecords accepts a bare JSON array, or an object carrying the array
// under "data" or "events"; the first matching shape wins in that order.
func decodeRecords(body []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.New("remote: empty response body")
	}

	if trimmed[0] == '[' {
		var records []Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("remote: bad array payload: %w", err)
		}
		return records, nil
	}

	var envelope struct {
		Data   []Record `json:"data"`
		Events []Record `json:"events"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("remote: bad payload: %w", err)
	}
	if envelope.Data != nil {
		return envelope.Data, nil
	}
	if envelope.Events != nil {
		return envelope.Events, nil
	}
	return nil, errors.New("remote: payload has neither data nor events array")
}

// NormalizeRecord is the default record mapper. Field resolution order:
//
//	id    <- id | _id
//	title <- title | text
//	start <- start_date | start | startDate | date
//	end   <- end_date | end | endDate | finish | finishDate | (start)
//
// A record whose start cannot be resolved is dropped.
func NormalizeRecord(rec Record) (model.Event, bool) {
	var ev model.Event

	ev.ID = stringField(rec, "id", "_id")
	ev.Title = stringField(rec, "title", "text")
	ev.Color = stringField(rec, "color")

	start, ok := timeField(rec, "start_date", "start", "startDate", "date")
	if !ok {
		return model.Event{}, false
	}
	ev.Start = start

	end, ok := timeField(rec, "end_date", "end", "endDate", "finish", "finishDate")
	if !ok {
		// No end field at all: fall back to the start instant.
		end = start
	}
	ev.End = end
	if ev.End.Before(ev.Start) {
		return model.Event{}, false
	}

	return ev, true
}

func stringField(rec Record, keys ...string) string {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			switch s := v.(type) {
			case string:
				if s != "" {
					return s
				}
			case float64:
				return fmt.Sprintf("%v", s)
			}
		}
	}
	return ""
}

func timeField(rec Record, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if t, err := parseTimestamp(s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseTimestamp accepts RFC3339, plain YYYY-MM-DD, and the common
// "2006-01-02 15:04:05" wire forms.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Create posts a canonical event to the mutation endpoint and runs the
// response through the same normalizer. On any non-2xx status or parse
// error the optimistic event is not retained; the caller only sees the
// error.
func (c *Controller) Create(ctx context.Context, ev model.Event) (model.Event, error) {
	if c.opts.BaseURL == "" {
		return model.Event{}, errors.New("remote: no base URL configured")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return model.Event{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return model.Event{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Event{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.Event{}, fmt.Errorf("remote: create failed with status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Event{}, err
	}

	var rec Record
	if err := json.Unmarshal(bytes.TrimSpace(body), &rec); err != nil {
		return model.Event{}, fmt.Errorf("remote: bad create response: %w", err)
	}

	transform := c.opts.Normalize
	if transform == nil {
		transform = NormalizeRecord
	}
	created, ok := transform(rec)
	if !ok {
		return model.Event{}, errors.New("remote: create response is not a resolvable event")
	}
	created.Source = "remote"

	c.mu.Lock()
	if !c.closed {
		c.events = append(c.events, created)
	}
	c.mu.Unlock()

	appLog.Info("remote: event created", "id", created.ID)
	return created, nil
}

// Package web exposes the calendar engine and the mock datasets over
// HTTP.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"calgrid/internal/config"
	"calgrid/internal/dateutil"
	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/mockdata"
	"calgrid/internal/model"
	"calgrid/internal/remote"
	"calgrid/internal/store"
	"calgrid/internal/view"
)

// Server wires the resolver, store, sync controller and mock datasets
// behind a ServeMux.
type Server struct {
	cfg      *config.Config
	resolver *view.Resolver
	store    *store.Store
	remote   *remote.Controller // nil when no remote source is configured
	fetcher  *ics.Fetcher
	sources  []ics.Source
	location *time.Location
	mux      *http.ServeMux

	datasets map[string]*mockdata.Dataset

	// gridMu guards a single-entry cache of the last grid response, so
	// repeated polling of the same view does not redo merge work.
	gridMu    sync.RWMutex
	gridCache *gridCache
}

type gridCache struct {
	key       string
	resp      gridResponse
	updatedAt time.Time
}

const gridCacheTTL = 10 * time.Second

// NewServer constructs a Server from the loaded configuration.
func NewServer(cfg *config.Config) *Server {
	loc := resolveLocation(cfg.Timezone)

	s := &Server{
		cfg:      cfg,
		resolver: view.NewResolver(model.ParseWeekStart(cfg.WeekStart)),
		store:    store.New(parseStaticEvents(cfg.Events, loc)),
		fetcher:  ics.NewFetcher(cfg.CacheDir),
		location: loc,
		mux:      http.NewServeMux(),
		datasets: mockdata.Generate(mockdata.Options{
			Seed:      cfg.Mock.Seed,
			Customers: cfg.Mock.Customers,
			Products:  cfg.Mock.Products,
			Orders:    cfg.Mock.Orders,
		}),
	}

	if cfg.Remote != nil && cfg.Remote.URL != "" {
		s.remote = remote.NewController(remote.Options{
			BaseURL:           cfg.Remote.URL,
			UserID:            cfg.Remote.UserID,
			RefetchOnNavigate: cfg.Remote.RefetchOnNavigate,
		})
	}

	for _, src := range cfg.ICS {
		if src.URL == "" {
			continue
		}
		id := src.ID
		if id == "" {
			if src.Name != "" {
				id = src.Name
			} else {
				id = src.URL
			}
		}
		s.sources = append(s.sources, ics.Source{ID: id, URL: src.URL})
	}

	s.registerRoutes()
	return s
}

// Controller exposes the remote sync controller for the background
// refresh loop; nil when no remote source is configured.
func (s *Server) Controller() *remote.Controller {
	return s.remote
}

// Store exposes the event store.
func (s *Server) Store() *store.Store {
	return s.store
}

// DefaultRange is the visible interval for the configured default view
// anchored at today.
func (s *Server) DefaultRange() model.DateInterval {
	mode, _ := model.ParseViewMode(s.cfg.DefaultView)
	return s.resolver.Range(mode, time.Now().In(s.location))
}

// RefreshRemote runs one remote fetch for iv and pushes the result into
// the store. Used by the cron loop and the grid handler.
func (s *Server) RefreshRemote(ctx context.Context, iv model.DateInterval) {
	if s.remote == nil {
		return
	}
	events, err := s.remote.Refresh(ctx, iv)
	if err != nil {
		// Failed state is already recorded; the store keeps its last set.
		return
	}
	s.store.SetRemote(events)
	s.invalidateGridCache()
}

// Handler returns the http.Handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/grid", s.handleGrid)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/customers", s.mockHandler("customers"))
	s.mux.HandleFunc("/api/products", s.mockHandler("products"))
	s.mux.HandleFunc("/api/orders", s.mockHandler("orders"))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// gridResponse is the JSON shape for /api/grid.
type gridResponse struct {
	View     string             `json:"view"`
	Anchor   string             `json:"anchor"`
	Title    string             `json:"title"`
	Range    model.DateInterval `json:"range"`
	Cells    []cellDTO          `json:"cells"`
	Overflow int                `json:"overflowCap"`
	Fetch    fetchDTO           `json:"fetch"`
}

type cellDTO struct {
	Date     string        `json:"date"`
	InMonth  bool          `json:"inMonth"`
	Week     int           `json:"weekNumber"`
	Events   []model.Event `json:"events"`
	Overflow []model.Event `json:"overflow,omitempty"`
}

type fetchDTO struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// handleGrid resolves and returns the populated grid.
//
// GET /api/grid?view=month&anchor=2020-10-05
//   - view:   month (default from config) | week | day
//   - anchor: YYYY-MM-DD date key; defaults to today
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	viewParam := q.Get("view")
	if viewParam == "" {
		viewParam = s.cfg.DefaultView
	}
	mode, err := model.ParseViewMode(viewParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	anchor := time.Now().In(s.location)
	if key := q.Get("anchor"); key != "" {
		parsed, err := dateutil.ParseDateKey(key)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		anchor = parsed
	}
	anchor = dateutil.Midnight(anchor)

	cacheKey := mode.String() + "/" + dateutil.FormatDateKey(anchor)
	s.gridMu.RLock()
	gc := s.gridCache
	s.gridMu.RUnlock()
	if gc != nil && gc.key == cacheKey && time.Since(gc.updatedAt) < gridCacheTTL {
		writeJSON(w, http.StatusOK, gc.resp)
		return
	}

	iv := s.resolver.Range(mode, anchor)

	if s.remote != nil && s.remote.ShouldRefetch() {
		s.RefreshRemote(ctx, iv)
	}

	events := s.store.All()
	if len(s.sources) > 0 {
		icsEvents, err := ics.Load(ctx, s.fetcher, s.sources, ics.ExpandConfig{
			DisplayLocation: s.location,
			Range:           iv,
		})
		if err != nil {
			appLog.Error("grid: ics load failed", err)
		} else {
			events = store.Merge(events, icsEvents)
		}
	}
	events = store.EventsForInterval(events, iv)

	cells := s.resolver.Grid(mode, anchor)
	store.Populate(cells, events)

	overflowCap := s.cfg.OverflowCap
	dtos := make([]cellDTO, 0, len(cells))
	for _, c := range cells {
		inline, overflow := c.Events, []model.Event(nil)
		if mode == model.ViewMonth {
			inline, overflow = store.SplitOverflow(c.Events, overflowCap)
		}
		dtos = append(dtos, cellDTO{
			Date:     dateutil.FormatDateKey(c.Date),
			InMonth:  c.InMonth,
			Week:     dateutil.ISOWeek(c.Date),
			Events:   inline,
			Overflow: overflow,
		})
	}

	resp := gridResponse{
		View:     mode.String(),
		Anchor:   dateutil.FormatDateKey(anchor),
		Title:    s.resolver.Title(mode, anchor),
		Range:    iv,
		Cells:    dtos,
		Overflow: overflowCap,
		Fetch:    s.fetchDTO(),
	}

	s.gridMu.Lock()
	s.gridCache = &gridCache{key: cacheKey, resp: resp, updatedAt: time.Now()}
	s.gridMu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) fetchDTO() fetchDTO {
	if s.remote == nil {
		return fetchDTO{State: model.FetchIdle.String()}
	}
	st := s.remote.Status()
	return fetchDTO{State: st.State.String(), Error: st.Err}
}

func (s *Server) invalidateGridCache() {
	s.gridMu.Lock()
	s.gridCache = nil
	s.gridMu.Unlock()
}

// handleEvents serves the merged event list and event creation.
//
// GET  /api/events?start=2020-10-05&end=2020-10-12
// POST /api/events with a canonical event body
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleEventsList(w, r)
	case http.MethodPost:
		s.handleEventCreate(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleEventsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	iv := s.DefaultRange()
	if startKey, endKey := q.Get("start"), q.Get("end"); startKey != "" && endKey != "" {
		start, err := dateutil.ParseDateKey(startKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		end, err := dateutil.ParseDateKey(endKey)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if !end.After(start) {
			writeError(w, http.StatusBadRequest, "end must be after start")
			return
		}
		iv = model.DateInterval{Start: start, End: end}
	}

	type eventsResponse struct {
		Events []model.Event      `json:"events"`
		Range  model.DateInterval `json:"range"`
		Fetch  fetchDTO           `json:"fetch"`
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Events: s.store.ForInterval(iv),
		Range:  iv,
		Fetch:  s.fetchDTO(),
	})
}

func (s *Server) handleEventCreate(w http.ResponseWriter, r *http.Request) {
	var ev model.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad event body: "+err.Error())
		return
	}
	if ev.Title == "" || ev.Start.IsZero() {
		writeError(w, http.StatusBadRequest, "event needs a title and a start")
		return
	}
	if ev.End.IsZero() {
		ev.End = ev.Start
	}
	if ev.End.Before(ev.Start) {
		writeError(w, http.StatusBadRequest, "event end before start")
		return
	}

	if s.remote != nil {
		created, err := s.remote.Create(r.Context(), ev)
		if err != nil {
			// The optimistic event is not retained on failure.
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		s.store.SetRemote(s.remote.Events())
		s.invalidateGridCache()
		writeJSON(w, http.StatusCreated, created)
		return
	}

	ev.Source = "static"
	s.store.Add(ev)
	s.invalidateGridCache()
	writeJSON(w, http.StatusCreated, ev)
}

// mockHandler serves one example dataset with the generic
// filter/sort/paginate query contract.
func (s *Server) mockHandler(entity string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds, ok := s.datasets[entity]
		if !ok {
			writeError(w, http.StatusNotFound, "unknown dataset")
			return
		}
		q := r.URL.Query()

		rows := mockdata.Filter(ds.Rows, q)
		rows = mockdata.Sort(rows, q.Get("sortBy"), q.Get("sortOrder"))
		page := mockdata.Paginate(rows, parseIntDefault(q.Get("page"), 1), parseIntDefault(q.Get("limit"), 10))

		writeJSON(w, http.StatusOK, mockdata.Envelope(entity, page))
	}
}

// parseStaticEvents converts configured events, dropping unparseable
// ones with a log line.
func parseStaticEvents(events []config.StaticEvent, loc *time.Location) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, se := range events {
		start, err := parseEventTime(se.Start, loc)
		if err != nil {
			appLog.Error("config: dropping static event with bad start", err, "id", se.ID)
			continue
		}
		end := start
		if se.End != "" {
			end, err = parseEventTime(se.End, loc)
			if err != nil || end.Before(start) {
				appLog.Error("config: dropping static event with bad end", err, "id", se.ID)
				continue
			}
		}
		out = append(out, model.Event{
			ID:     se.ID,
			Title:  se.Title,
			Start:  start,
			End:    end,
			Color:  se.Color,
			Source: "static",
		})
	}
	return out
}

func parseEventTime(s string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.ParseInLocation(dateutil.DateKeyLayout, s, loc)
}

func resolveLocation(name string) *time.Location {
	if name == "" || name == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

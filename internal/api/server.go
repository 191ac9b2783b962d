package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"osrs-flipper/internal/config"
	"osrs-flipper/internal/db"
	"osrs-flipper/internal/engine"
	"osrs-flipper/internal/refresh"
	"osrs-flipper/internal/wiki"
)

// Store is the slice of the preference store the API reads directly.
type Store interface {
	LoadColumns() map[string]bool
	SaveColumns(cols map[string]bool) error
	GetCycles(limit int) []db.CycleRecord
	GetAlerts(itemID, limit int) ([]db.AlertRecord, error)
}

// Upstream is the price API as seen by the handlers: per-item history, its
// session cache and a connectivity probe.
type Upstream interface {
	FetchSeries(ctx context.Context, itemID int, timestep string) ([]wiki.SeriesPoint, error)
	SeriesCache() *wiki.SeriesCache
	HealthCheck(ctx context.Context) bool
}

// Server is the HTTP API over the refresh orchestrator and preference store.
type Server struct {
	orch     *refresh.Orchestrator
	store    Store
	upstream Upstream
	search   *refresh.Debouncer
	now      func() time.Time
}

// NewServer creates a Server. Search terms are applied after debounce of
// quiet time; a non-positive debounce uses refresh.DefaultSearchDebounce.
func NewServer(orch *refresh.Orchestrator, store Store, upstream Upstream, debounce time.Duration) *Server {
	s := &Server{
		orch:     orch,
		store:    store,
		upstream: upstream,
		now:      time.Now,
	}
	s.search = refresh.NewDebouncer(debounce, func(term string) {
		orch.SetSearch(term)
		orch.ParametersChanged()
	})
	return s
}

// Close cancels a pending debounced search.
func (s *Server) Close() {
	s.search.Stop()
}

// Handler returns the HTTP handler with all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config", s.handleSetConfig)
	mux.HandleFunc("GET /api/rows", s.handleRows)
	mux.HandleFunc("GET /api/recommendations", s.handleRecommendations)
	mux.HandleFunc("GET /api/pins", s.handleGetPins)
	mux.HandleFunc("POST /api/pins/{id}", s.handlePin)
	mux.HandleFunc("DELETE /api/pins/{id}", s.handleUnpin)
	mux.HandleFunc("POST /api/pins/{id}/toggle", s.handleTogglePin)
	mux.HandleFunc("GET /api/filters/advanced", s.handleGetAdvanced)
	mux.HandleFunc("PUT /api/filters/advanced", s.handleSetAdvanced)
	mux.HandleFunc("PUT /api/filters/popover", s.handleSetPopover)
	mux.HandleFunc("GET /api/columns", s.handleGetColumns)
	mux.HandleFunc("PUT /api/columns", s.handleSetColumns)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/series/{id}", s.handleSeries)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(204)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func pathID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// --- Handlers ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.orch.Status()
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	result := map[string]interface{}{
		"feed_ok":       s.upstream.HealthCheck(ctx),
		"item_count":    st.ItemCount,
		"diagnostic":    st.Diagnostic,
		"pinned":        st.Pinned,
		"last_error":    st.LastError,
		"last_cycle_id": st.LastCycleID,
		"search":        st.Search,
	}
	if !st.SnapshotAt.IsZero() {
		result["snapshot_at"] = st.SnapshotAt.Unix()
		result["snapshot_age_secs"] = int64(s.now().Sub(st.SnapshotAt).Seconds())
	}
	if !st.LastCycleAt.IsZero() {
		result["last_cycle_at"] = st.LastCycleAt.Unix()
	}
	writeJSON(w, result)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orch.Config())
}

// handleSetConfig applies a partial config: only keys present in the body
// change. Out-of-range values are clamped rather than rejected.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if err != nil {
		writeError(w, 400, "invalid body")
		return
	}
	check := s.orch.Config()
	if err := json.Unmarshal(body, &check); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	cfg, err := s.orch.UpdateConfig(func(c *config.Config) {
		json.NewDecoder(bytes.NewReader(body)).Decode(c)
	})
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.orch.ParametersChanged()
	writeJSON(w, cfg)
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	res := s.orch.Result()
	if res.Rows == nil {
		res.Rows = []engine.Row{}
	}
	writeJSON(w, map[string]interface{}{
		"rows":       res.Rows,
		"considered": res.Considered,
		"built":      res.Built,
		"mode":       res.Mode,
		"fallback":   res.FallbackApplied,
		"diagnostic": res.Diagnostic,
	})
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	recs := s.orch.Result().Recommendations
	if recs == nil {
		recs = []engine.Recommendation{}
	}
	writeJSON(w, recs)
}

func (s *Server) handleGetPins(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string][]int{"pins": s.orch.Pins()})
}

func (s *Server) handlePin(w http.ResponseWriter, r *http.Request) {
	s.setPinned(w, r, true)
}

func (s *Server) handleUnpin(w http.ResponseWriter, r *http.Request) {
	s.setPinned(w, r, false)
}

func (s *Server) setPinned(w http.ResponseWriter, r *http.Request, pinned bool) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, 400, "invalid item id")
		return
	}
	if err := s.orch.SetPinned(id, pinned); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.orch.ParametersChanged()
	writeJSON(w, map[string]interface{}{"id": id, "pinned": pinned, "pins": s.orch.Pins()})
}

func (s *Server) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, 400, "invalid item id")
		return
	}
	pinned, err := s.orch.TogglePin(id)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.orch.ParametersChanged()
	writeJSON(w, map[string]interface{}{"id": id, "pinned": pinned, "pins": s.orch.Pins()})
}

func (s *Server) handleGetAdvanced(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.orch.AdvancedFilter())
}

func (s *Server) handleSetAdvanced(w http.ResponseWriter, r *http.Request) {
	var cfg engine.AdvancedFilterConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if err := s.orch.SetAdvancedFilter(cfg); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	s.orch.ParametersChanged()
	writeJSON(w, s.orch.AdvancedFilter())
}

func (s *Server) handleSetPopover(w http.ResponseWriter, r *http.Request) {
	var f engine.PopoverFilters
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	s.orch.SetPopoverFilters(f)
	s.orch.ParametersChanged()
	writeJSON(w, f)
}

func (s *Server) handleGetColumns(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.store.LoadColumns())
}

func (s *Server) handleSetColumns(w http.ResponseWriter, r *http.Request) {
	var cols map[string]bool
	if err := json.NewDecoder(r.Body).Decode(&cols); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	if err := s.store.SaveColumns(cols); err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, s.store.LoadColumns())
}

// handleSearch queues a search term. Only the last term submitted within the
// debounce window is applied.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Term string `json:"term"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, 400, "invalid json")
		return
	}
	s.search.Submit(req.Term)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{"term": req.Term, "pending": true})
}

// handleSeries serves one item's price history. ?range= selects a chart
// preset (window and granularity); ?timestep= overrides the granularity.
// An upstream failure yields an empty series.
func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeError(w, 400, "invalid item id")
		return
	}
	q := r.URL.Query()
	rangeKey := q.Get("range")
	if rangeKey == "" && q.Get("timestep") == "" {
		rangeKey = s.orch.Config().ChartRange
	}
	var window int64
	timestep := q.Get("timestep")
	if rangeKey != "" {
		cr, ok := wiki.ChartRanges[rangeKey]
		if !ok {
			writeError(w, 400, fmt.Sprintf("unknown range %q", rangeKey))
			return
		}
		window = cr.Seconds
		if timestep == "" {
			timestep = cr.Timestep
		}
	}
	if !wiki.ValidTimestep(timestep) {
		writeError(w, 400, fmt.Sprintf("invalid timestep %q", timestep))
		return
	}

	pts, err := s.upstream.FetchSeries(r.Context(), id, timestep)
	if err != nil {
		log.Printf("[API] series %d/%s: %v", id, timestep, err)
		pts = nil
	}
	out := make([]wiki.SeriesPoint, 0, len(pts))
	cutoff := s.now().Unix() - window
	for _, p := range pts {
		if window > 0 && p.Timestamp < cutoff {
			continue
		}
		out = append(out, p)
	}
	writeJSON(w, map[string]interface{}{
		"id":       id,
		"range":    rangeKey,
		"timestep": timestep,
		"points":   out,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()
	if err := s.orch.Refresh(ctx); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	res := s.orch.Result()
	writeJSON(w, map[string]interface{}{
		"series_cleared": s.upstream.SeriesCache().Clear(),
		"count":          len(res.Rows),
		"fallback":       res.FallbackApplied,
		"diagnostic":     res.Diagnostic,
		"cycle_id":       s.orch.Status().LastCycleID,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	alerts, err := s.store.GetAlerts(queryInt(r, "item_id", 0), limit)
	if err != nil {
		writeError(w, 500, err.Error())
		return
	}
	writeJSON(w, map[string]interface{}{
		"cycles": s.store.GetCycles(limit),
		"alerts": alerts,
	})
}

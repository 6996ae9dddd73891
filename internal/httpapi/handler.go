package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"roomload/core-go/internal/metrics"
	"roomload/core-go/internal/occupancy"
	"roomload/core-go/internal/poller"
	"roomload/core-go/internal/rotation"
	"roomload/core-go/internal/topology"
	"roomload/core-go/internal/view"
)

// Pinger is satisfied by *db.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Refresher interface {
	Refresh(ctx context.Context) (*poller.Result, error)
}

type FloorRotation interface {
	Current() (rotation.Position, bool)
	Set(label string) (rotation.Position, bool)
}

// Deps are the collaborators of Handler. Any of them may be nil; the routes
// that need a missing one answer 503.
type Deps struct {
	DB        Pinger
	Board     *poller.Board
	Refresher Refresher
	Rotation  FloorRotation
	Plans     view.PlanLookup
	Metrics   *metrics.Metrics
}

type Handler struct {
	log       zerolog.Logger
	db        Pinger
	board     *poller.Board
	refresher Refresher
	rotation  FloorRotation
	plans     view.PlanLookup
	metrics   *metrics.Metrics
}

func NewHandler(log zerolog.Logger, deps Deps) *Handler {
	return &Handler{
		log:       log,
		db:        deps.DB,
		board:     deps.Board,
		refresher: deps.Refresher,
		rotation:  deps.Rotation,
		plans:     deps.Plans,
		metrics:   deps.Metrics,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(echoRequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Route("/floors", func(r chi.Router) {
				r.Get("/", h.handleListFloors)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/overlay", h.handleFloorOverlay)
					r.Get("/occupancy", h.handleFloorOccupancy)
				})
			})
			r.Get("/rotation", h.handleRotation)
			r.Put("/rotation", h.handleSetRotation)
			r.Post("/refresh", h.handleRefresh)
			r.Get("/status", h.handleStatus)
		})
	})

	return r
}

func echoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		h.metrics.ObserveHTTPRequest(r.Method, route, status, time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.db == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	if err := h.db.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not ready", map[string]any{"error": err.Error()})
		return
	}

	if h.board.Current() == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "no occupancy result published yet", nil)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// current writes a not_ready error and returns nil when nothing has been
// published yet.
func (h *Handler) current(w http.ResponseWriter) *poller.Result {
	res := h.board.Current()
	if res == nil {
		h.writeError(w, http.StatusServiceUnavailable, "not_ready", "no occupancy result published yet", nil)
	}
	return res
}

func (h *Handler) handleListFloors(w http.ResponseWriter, r *http.Request) {
	res := h.current(w)
	if res == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, view.NewFloors(res, h.plans))
}

func (h *Handler) handleFloorOverlay(w http.ResponseWriter, r *http.Request) {
	res, f, ok := h.floorFromPath(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, view.NewOverlay(res, f, h.plans))
}

func (h *Handler) handleFloorOccupancy(w http.ResponseWriter, r *http.Request) {
	res, f, ok := h.floorFromPath(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, view.NewRooms(res, f))
}

func (h *Handler) floorFromPath(w http.ResponseWriter, r *http.Request) (*poller.Result, occupancy.FloorOverlay, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_id", "floor id must be a positive integer", map[string]any{"id": raw})
		return nil, occupancy.FloorOverlay{}, false
	}

	res := h.current(w)
	if res == nil {
		return nil, occupancy.FloorOverlay{}, false
	}

	f, ok := res.Floor(topology.FloorID(id))
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "floor not found", map[string]any{"id": id})
		return nil, occupancy.FloorOverlay{}, false
	}
	return res, f, true
}

type rotationPosition struct {
	Label string    `json:"label"`
	Index int       `json:"index"`
	Count int       `json:"count"`
	Since time.Time `json:"since"`
	Next  time.Time `json:"next"`
}

type rotationResponse struct {
	Position rotationPosition `json:"position"`
	Overlay  *view.Overlay    `json:"overlay"`
}

func (h *Handler) handleRotation(w http.ResponseWriter, r *http.Request) {
	if h.rotation == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rotation_unavailable", "floor rotation not configured", nil)
		return
	}
	pos, ok := h.rotation.Current()
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "no floors to rotate through", nil)
		return
	}

	res := h.current(w)
	if res == nil {
		return
	}
	h.writeJSON(w, http.StatusOK, h.buildRotation(res, pos))
}

type setRotationRequest struct {
	Floor string `json:"floor"`
}

// handleSetRotation jumps the rotation to a floor. The rotation then continues
// from there on its own interval.
func (h *Handler) handleSetRotation(w http.ResponseWriter, r *http.Request) {
	if h.rotation == nil {
		h.writeError(w, http.StatusServiceUnavailable, "rotation_unavailable", "floor rotation not configured", nil)
		return
	}

	var req setRotationRequest
	if err := decodeJSONStrict(r, &req); err != nil {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "invalid json body", map[string]any{"error": err.Error()})
		return
	}
	label := strings.TrimSpace(req.Floor)
	if label == "" {
		h.writeError(w, http.StatusBadRequest, "validation_failed", "floor is required", nil)
		return
	}

	pos, ok := h.rotation.Set(label)
	if !ok {
		h.writeError(w, http.StatusNotFound, "not_found", "floor is not part of the rotation", map[string]any{"floor": label})
		return
	}
	h.log.Info().Str("floor", pos.Label).Int("index", pos.Index).Msg("rotation moved")

	// Before the first refresh the position is still returned, without overlay.
	h.writeJSON(w, http.StatusOK, h.buildRotation(h.board.Current(), pos))
}

func (h *Handler) buildRotation(res *poller.Result, pos rotation.Position) rotationResponse {
	resp := rotationResponse{
		Position: rotationPosition{
			Label: pos.Label,
			Index: pos.Index,
			Count: pos.Count,
			Since: pos.Since.UTC(),
			Next:  pos.Next.UTC(),
		},
	}
	// A floor with a plan but no rooms in the store yields a null overlay.
	if f, ok := res.FloorByLabel(pos.Label); ok {
		o := view.NewOverlay(res, f, h.plans)
		resp.Overlay = &o
	}
	return resp
}

func decodeJSONStrict(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return errors.New("unexpected extra data after JSON body")
		}
		return err
	}
	return nil
}

type refreshResponse struct {
	RefreshSeq  uint64    `json:"refresh_seq"`
	RefreshedAt time.Time `json:"refreshed_at"`
	Floors      int       `json:"floors"`
	LiveCounts  int       `json:"live_counts"`
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if h.refresher == nil {
		h.writeError(w, http.StatusServiceUnavailable, "db_unavailable", "database not configured", nil)
		return
	}

	res, err := h.refresher.Refresh(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("on-demand refresh failed")
		h.writeError(w, http.StatusBadGateway, "refresh_failed", "failed to refresh occupancy; previous result is still served", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, refreshResponse{
		RefreshSeq:  res.Seq,
		RefreshedAt: res.StartedAt.UTC(),
		Floors:      len(res.Floors),
		LiveCounts:  res.LiveCounts,
	})
}

type statusResponse struct {
	Ready               bool       `json:"ready"`
	CurrentSeq          uint64     `json:"current_seq"`
	LastStartedAt       *time.Time `json:"last_started_at,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastErrorAt         *time.Time `json:"last_error_at,omitempty"`
	LastError           *string    `json:"last_error,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	Refreshes           uint64     `json:"refreshes"`
	Failures            uint64     `json:"failures"`
	Superseded          uint64     `json:"superseded"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.board.Status()
	resp := statusResponse{
		Ready:               h.board.Current() != nil,
		CurrentSeq:          st.CurrentSeq,
		LastStartedAt:       optionalTime(st.LastStartedAt),
		LastSuccessAt:       optionalTime(st.LastSuccessAt),
		LastErrorAt:         optionalTime(st.LastErrorAt),
		ConsecutiveFailures: st.ConsecutiveFailures,
		Refreshes:           st.Refreshes,
		Failures:            st.Failures,
		Superseded:          st.Superseded,
	}
	if st.LastError != "" {
		msg := st.LastError
		resp.LastError = &msg
	}
	h.writeJSON(w, http.StatusOK, resp)
}

package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zeebo/errs"

	"github.com/tlhunter/take-home-test-uber/internal/geo"
	"github.com/tlhunter/take-home-test-uber/internal/store"
	"github.com/tlhunter/take-home-test-uber/internal/stream"
)

// errBadInput marks a missing or malformed query parameter. Rejected with
// 400; the store is never consulted.
var errBadInput = errs.Class("client input")

// Store is the read side of the record store the handlers query.
type Store interface {
	CountTripsInBox(ctx context.Context, r geo.Rect) (int64, error)
	SumFaresInBox(ctx context.Context, r geo.Rect) (store.FareTotal, error)
	ActiveTripsAt(ctx context.Context, t time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	store Store
	sup   *stream.Supervisor
	mux   *http.ServeMux
}

// New creates an HTTP handler and registers all routes. sup may be nil when
// no ingestion stream is attached.
func New(st Store, sup *stream.Supervisor, log *slog.Logger) http.Handler {
	h := &Handler{store: st, sup: sup, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /{$}", h.index)
	h.mux.HandleFunc("GET /trip-count", h.tripCount)
	h.mux.HandleFunc("GET /fare-sum", h.fareSum)
	h.mux.HandleFunc("GET /snapshot-count", h.snapshotCount)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(log, h.mux)
}

// GET / — list the query routes.
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, []string{
		"/trip-count",
		"/fare-sum",
		"/snapshot-count",
	})
}

// GET /trip-count?p1_lat=&p1_lng=&p2_lat=&p2_lng= — distinct trips with any
// event inside the box.
func (h *Handler) tripCount(w http.ResponseWriter, r *http.Request) {
	rect, err := parseCorners(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := h.store.CountTripsInBox(r.Context(), rect)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"trip_count": count})
}

// GET /fare-sum?p1_lat=&p1_lng=&p2_lat=&p2_lng= — fare aggregate over
// completed trips touching the box.
func (h *Handler) fareSum(w http.ResponseWriter, r *http.Request) {
	rect, err := parseCorners(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	total, err := h.store.SumFaresInBox(r.Context(), rect)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}
	writeJSON(w, http.StatusOK, total)
}

// GET /snapshot-count?timestamp= — trips in flight as of the instant.
func (h *Handler) snapshotCount(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("timestamp")
	if raw == "" {
		writeError(w, http.StatusBadRequest,
			"you must provide the following parameters: timestamp")
		return
	}
	at, err := parseTimestamp(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := h.store.ActiveTripsAt(r.Context(), at)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"trip_count": count})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 when the store is unreachable.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ready"}
	if h.sup != nil {
		body["stream"] = h.sup.State().String()
	}
	if err := h.store.Ping(r.Context()); err != nil {
		body["status"] = "store unreachable"
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}

var cornerParams = []string{"p1_lat", "p1_lng", "p2_lat", "p2_lng"}

// parseCorners pulls the two rectangle corners from the query string and
// normalizes them into a Rect. Corner order doesn't matter.
func parseCorners(q url.Values) (geo.Rect, error) {
	vals := make(map[string]float64, len(cornerParams))
	for _, name := range cornerParams {
		raw := q.Get(name)
		if raw == "" {
			return geo.Rect{}, errBadInput.New(
				"you must provide the following parameters: p1_lat, p1_lng, p2_lat, p2_lng")
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return geo.Rect{}, errBadInput.New("parameter %s is not numeric", name)
		}
		vals[name] = f
	}
	p1 := geo.Point{Lat: vals["p1_lat"], Lng: vals["p1_lng"]}
	p2 := geo.Point{Lat: vals["p2_lat"], Lng: vals["p2_lng"]}
	return geo.BoundingBox(p1, p2), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts RFC 3339 and the common ISO-8601 variants the
// original producer tooling used. Layouts without a zone are read as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errBadInput.New("parameter timestamp is not a valid instant")
}

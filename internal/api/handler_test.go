package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tlhunter/take-home-test-uber/internal/geo"
	"github.com/tlhunter/take-home-test-uber/internal/store"
)

// stubStore returns canned answers and records the last rectangle and
// timestamp each query received.
type stubStore struct {
	count    int64
	total    store.FareTotal
	active   int64
	err      error
	pingErr  error
	lastRect geo.Rect
	lastAt   time.Time
}

func (s *stubStore) CountTripsInBox(ctx context.Context, r geo.Rect) (int64, error) {
	s.lastRect = r
	return s.count, s.err
}

func (s *stubStore) SumFaresInBox(ctx context.Context, r geo.Rect) (store.FareTotal, error) {
	s.lastRect = r
	return s.total, s.err
}

func (s *stubStore) ActiveTripsAt(ctx context.Context, t time.Time) (int64, error) {
	s.lastAt = t
	return s.active, s.err
}

func (s *stubStore) Ping(ctx context.Context) error { return s.pingErr }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestIndexListsRoutes(t *testing.T) {
	h := New(&stubStore{}, nil, slog.Default())
	rec := get(t, h, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var routes []string
	decode(t, rec, &routes)
	if len(routes) != 3 {
		t.Errorf("routes = %v, want 3 entries", routes)
	}
}

func TestTripCount(t *testing.T) {
	st := &stubStore{count: 7}
	h := New(st, nil, slog.Default())

	rec := get(t, h, "/trip-count?p1_lat=0&p1_lng=0&p2_lat=20&p2_lng=20")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]int64
	decode(t, rec, &body)
	if body["trip_count"] != 7 {
		t.Errorf("trip_count = %d, want 7", body["trip_count"])
	}

	// Swapping the corner parameters yields an identical rectangle.
	first := st.lastRect
	rec = get(t, h, "/trip-count?p1_lat=20&p1_lng=20&p2_lat=0&p2_lng=0")
	if rec.Code != http.StatusOK {
		t.Fatalf("swapped status = %d", rec.Code)
	}
	if st.lastRect != first {
		t.Errorf("swapped corners rect = %+v, want %+v", st.lastRect, first)
	}
}

func TestTripCountBadInput(t *testing.T) {
	h := New(&stubStore{}, nil, slog.Default())

	cases := []struct {
		name string
		path string
	}{
		{"all missing", "/trip-count"},
		{"one missing", "/trip-count?p1_lat=0&p1_lng=0&p2_lat=20"},
		{"non-numeric", "/trip-count?p1_lat=abc&p1_lng=0&p2_lat=20&p2_lng=20"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := get(t, h, tc.path)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestFareSum(t *testing.T) {
	st := &stubStore{total: store.FareTotal{FareSum: 15, TripCount: 1}}
	h := New(st, nil, slog.Default())

	rec := get(t, h, "/fare-sum?p1_lat=0&p1_lng=0&p2_lat=20&p2_lng=20")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body store.FareTotal
	decode(t, rec, &body)
	if body.FareSum != 15 || body.TripCount != 1 {
		t.Errorf("body = %+v, want {15 1}", body)
	}
}

func TestFareSumZeroResultIsOK(t *testing.T) {
	h := New(&stubStore{}, nil, slog.Default())
	rec := get(t, h, "/fare-sum?p1_lat=0&p1_lng=0&p2_lat=1&p2_lng=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for an empty result", rec.Code)
	}
	var body store.FareTotal
	decode(t, rec, &body)
	if body.FareSum != 0 || body.TripCount != 0 {
		t.Errorf("body = %+v, want zeroes", body)
	}
}

func TestSnapshotCount(t *testing.T) {
	st := &stubStore{active: -2}
	h := New(st, nil, slog.Default())

	rec := get(t, h, "/snapshot-count?timestamp=2026-08-01T12:00:00Z")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var body map[string]int64
	decode(t, rec, &body)
	// Negative counts pass through unclamped.
	if body["trip_count"] != -2 {
		t.Errorf("trip_count = %d, want -2", body["trip_count"])
	}
	want := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !st.lastAt.Equal(want) {
		t.Errorf("timestamp = %v, want %v", st.lastAt, want)
	}
}

func TestSnapshotCountTimestampFormats(t *testing.T) {
	st := &stubStore{}
	h := New(st, nil, slog.Default())

	ok := []string{
		"2026-08-01T12:00:00Z",
		"2026-08-01T12:00:00.500Z",
		"2026-08-01T12:00:00%2B02:00",
		"2026-08-01T12:00:00",
		"2026-08-01%2012:00:00",
		"2026-08-01",
	}
	for _, raw := range ok {
		if rec := get(t, h, "/snapshot-count?timestamp="+raw); rec.Code != http.StatusOK {
			t.Errorf("timestamp %q: status = %d, want 200", raw, rec.Code)
		}
	}

	bad := []string{"", "yesterday", "1690000000x"}
	for _, raw := range bad {
		if rec := get(t, h, "/snapshot-count?timestamp="+raw); rec.Code != http.StatusBadRequest {
			t.Errorf("timestamp %q: status = %d, want 400", raw, rec.Code)
		}
	}
}

func TestStoreFailureIsServerError(t *testing.T) {
	st := &stubStore{err: store.ErrRetrieve.New("store offline")}
	h := New(st, nil, slog.Default())

	paths := []string{
		"/trip-count?p1_lat=0&p1_lng=0&p2_lat=20&p2_lng=20",
		"/fare-sum?p1_lat=0&p1_lng=0&p2_lat=20&p2_lng=20",
		"/snapshot-count?timestamp=2026-08-01T12:00:00Z",
	}
	for _, path := range paths {
		rec := get(t, h, path)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", path, rec.Code)
		}
	}
}

func TestHealthAndReadiness(t *testing.T) {
	st := &stubStore{}
	h := New(st, nil, slog.Default())

	if rec := get(t, h, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d", rec.Code)
	}

	st.pingErr = errors.New("store offline")
	if rec := get(t, h, "/readyz"); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503 when store unreachable", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := New(&stubStore{}, nil, slog.Default())
	rec := get(t, h, "/healthz")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id header")
	}
}

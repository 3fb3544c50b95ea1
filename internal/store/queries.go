package store

import (
	"context"
	"time"

	"github.com/tlhunter/take-home-test-uber/internal/geo"
	"github.com/tlhunter/take-home-test-uber/internal/metrics"
)

// FareTotal is the result of SumFaresInBox. Both fields are zero-valued,
// never null, when nothing matches.
type FareTotal struct {
	FareSum   float64 `json:"fare_sum"`
	TripCount int64   `json:"trip_count"`
}

func observe(query string, start time.Time) {
	metrics.QueryDuration.WithLabelValues(query).
		Observe(float64(time.Since(start).Milliseconds()))
}

// CountTripsInBox counts distinct trips with at least one event of any kind
// strictly inside r. A trip counts once no matter how many of its events
// land in the box. All-time; no temporal filter.
func (d *DB) CountTripsInBox(ctx context.Context, r geo.Rect) (int64, error) {
	defer observe("trip_count", time.Now())

	var count int64
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT trip_id) FROM events
		 WHERE lat > $1 AND lat < $2 AND lng > $3 AND lng < $4`,
		r.LatMin, r.LatMax, r.LngMin, r.LngMax).Scan(&count)
	if err != nil {
		return 0, ErrRetrieve.Wrap(err)
	}
	return count, nil
}

// SumFaresInBox sums fares over the end events of trips whose begin or end
// event lies strictly inside r. The containment test is the same open
// rectangle on all four sides as CountTripsInBox. End rows with a null fare
// are excluded from both the sum and the count. Duplicate end rows for one
// trip each contribute their fare; the store does not deduplicate them.
func (d *DB) SumFaresInBox(ctx context.Context, r geo.Rect) (FareTotal, error) {
	defer observe("fare_sum", time.Now())

	var t FareTotal
	err := d.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(fare), 0), COUNT(fare) FROM events
		 WHERE trip_id IN (
			SELECT DISTINCT trip_id FROM events
			WHERE lat > $1 AND lat < $2 AND lng > $3 AND lng < $4
			  AND (event = 'begin' OR event = 'end'))
		   AND event = 'end'`,
		r.LatMin, r.LatMax, r.LngMin, r.LngMax).Scan(&t.FareSum, &t.TripCount)
	if err != nil {
		return FareTotal{}, ErrRetrieve.Wrap(err)
	}
	return t, nil
}

// ActiveTripsAt approximates the number of trips in flight at instant t:
// begin events persisted before t minus end events persisted before t. The
// comparison uses the server-assigned created timestamp, so delayed or
// out-of-order ingestion skews the answer. The result can be negative (for
// example after duplicate end delivery) and is returned unclamped: a
// negative count is a persistence defect worth seeing, not hiding.
func (d *DB) ActiveTripsAt(ctx context.Context, t time.Time) (int64, error) {
	defer observe("snapshot_count", time.Now())

	cutoff := t.UTC()
	var count int64
	err := d.db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM events WHERE event = 'begin' AND created < $1)
		      - (SELECT COUNT(*) FROM events WHERE event = 'end' AND created < $2)`,
		cutoff, cutoff).Scan(&count)
	if err != nil {
		return 0, ErrRetrieve.Wrap(err)
	}
	return count, nil
}

package store

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"           // register postgres driver
	_ "github.com/mattn/go-sqlite3" // register sqlite driver
	"github.com/zeebo/errs"

	"github.com/tlhunter/take-home-test-uber/internal/event"
	"github.com/tlhunter/take-home-test-uber/internal/metrics"
)

var (
	// ErrPersist marks a failed append. Appends are not retried: a retry
	// after an ambiguous failure could insert the same logical event twice.
	ErrPersist = errs.Class("persist")

	// ErrRetrieve marks a failed read. Distinct from an empty result,
	// which is a valid zero-valued answer.
	ErrRetrieve = errs.Class("retrieve")
)

// DB is the events record store. It is safe for concurrent use; reads and
// writes share only the underlying database, which serializes them.
type DB struct {
	db *sql.DB

	// created timestamps are assigned here, not by the producer, and are
	// clamped non-decreasing in append order.
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// Open connects to the store and bootstraps the events schema. Supported
// drivers are "sqlite3" and "postgres". The schema keeps a created default
// of insertion time, though Append always supplies created explicitly.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, ErrPersist.Wrap(err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, ErrPersist.Wrap(err)
	}
	if driver == "sqlite3" {
		_, _ = db.ExecContext(ctx, `PRAGMA journal_mode = WAL`)
	}

	_, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS events (
			event   TEXT NOT NULL,
			trip_id BIGINT NOT NULL,
			lat     DOUBLE PRECISION NOT NULL,
			lng     DOUBLE PRECISION NOT NULL,
			fare    DOUBLE PRECISION,
			created TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`)
	if err != nil {
		_ = db.Close()
		return nil, ErrPersist.Wrap(err)
	}
	_, err = db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_events_trip_id ON events (trip_id)`)
	if err != nil {
		_ = db.Close()
		return nil, ErrPersist.Wrap(err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping reports whether the store is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// stamp assigns the next created timestamp: current time in UTC, clamped so
// it never runs backwards within this process.
func (d *DB) stamp() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.now().UTC()
	if t.Before(d.last) {
		t = d.last
	}
	d.last = t
	return t
}

// Append inserts one event row. The store is append-only: rows are never
// updated or deleted in steady state, and duplicate rows for the same
// logical event are possible under at-least-once delivery.
func (d *DB) Append(ctx context.Context, ev *event.Event) error {
	created := ev.Created
	if created.IsZero() {
		created = d.stamp()
	}

	var fare sql.NullFloat64
	if ev.Fare != nil {
		fare = sql.NullFloat64{Float64: *ev.Fare, Valid: true}
	}

	_, err := d.db.ExecContext(ctx,
		`INSERT INTO events (event, trip_id, lat, lng, fare, created)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		string(ev.Kind), ev.TripID, ev.Lat, ev.Lng, fare, created)
	if err != nil {
		return ErrPersist.Wrap(err)
	}
	metrics.EventsPersisted.WithLabelValues(string(ev.Kind)).Inc()
	return nil
}

// Reset deletes all recorded events. Invoked once at service start when
// configured; never part of steady-state operation.
func (d *DB) Reset(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return ErrPersist.Wrap(err)
	}
	return nil
}

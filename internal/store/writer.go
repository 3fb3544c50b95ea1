package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tlhunter/take-home-test-uber/internal/event"
	"github.com/tlhunter/take-home-test-uber/internal/metrics"
)

// Writer is the asynchronous persistence sink. Ingestion hands events to
// Enqueue and moves on to the next frame without waiting for the insert
// round-trip; a single background goroutine drains the queue in order, so
// created timestamps are assigned in arrival order. A failed insert is
// logged and counted, never retried (a retry could duplicate the row) and
// never fatal to the stream.
type Writer struct {
	db    *DB
	log   *slog.Logger
	queue chan *event.Event
	wg    sync.WaitGroup
}

// NewWriter starts the writer goroutine with the given queue capacity.
func NewWriter(db *DB, log *slog.Logger, depth int) *Writer {
	w := &Writer{
		db:    db,
		log:   log,
		queue: make(chan *event.Event, depth),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run()
	}()
	return w
}

// run drains the queue until it is closed. Inserts use a background
// context so that events already accepted still reach the store during
// shutdown.
func (w *Writer) run() {
	ctx := context.Background()
	for ev := range w.queue {
		metrics.WriteQueueDepth.Set(float64(len(w.queue)))
		if err := w.db.Append(ctx, ev); err != nil {
			metrics.PersistenceErrors.Inc()
			w.log.Error("event append failed",
				"kind", ev.Kind, "trip_id", ev.TripID, "err", err)
		}
	}
}

// Enqueue timestamps ev and queues it for insertion. It blocks if the queue
// is full: backpressure on the stream beats silently dropping events.
func (w *Writer) Enqueue(ev *event.Event) {
	if ev.Created.IsZero() {
		ev.Created = w.db.stamp()
	}
	w.queue <- ev
	metrics.WriteQueueDepth.Set(float64(len(w.queue)))
}

// Drain closes the queue and waits for every pending insert to finish.
func (w *Writer) Drain() {
	close(w.queue)
	w.wg.Wait()
}

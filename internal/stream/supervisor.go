package stream

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/zeebo/errs"

	"github.com/tlhunter/take-home-test-uber/internal/event"
	"github.com/tlhunter/take-home-test-uber/internal/metrics"
)

// ErrStream marks a connection-level ingestion failure.
var ErrStream = errs.Class("stream")

// State is the supervisor's connection lifecycle phase.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Sink accepts validated events for persistence. Enqueue must not block on
// the insert round-trip itself; the supervisor calls it inline between
// frames.
type Sink interface {
	Enqueue(*event.Event)
}

// Dialer opens the byte-stream connection to the event producer.
type Dialer func(ctx context.Context) (net.Conn, error)

// Supervisor owns one ingestion connection and wires every received chunk
// through Decoder → validator → Sink, in arrival order. It does not
// reconnect: a retry policy, if wanted, belongs to the caller.
type Supervisor struct {
	dial  Dialer
	sink  Sink
	log   *slog.Logger
	state atomic.Int32
}

// NewSupervisor returns a supervisor in the Disconnected state.
func NewSupervisor(dial Dialer, sink Sink, log *slog.Logger) *Supervisor {
	return &Supervisor{dial: dial, sink: sink, log: log}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	return State(s.state.Load())
}

func (s *Supervisor) setState(st State) {
	s.state.Store(int32(st))
}

// Run dials the producer and ingests frames until the stream ends, the
// connection fails, or ctx is cancelled. A graceful stream end (EOF) and a
// cancelled ctx both land in Terminated and return nil or ctx.Err(); an
// abrupt connection error lands in Disconnected and is returned. A single
// malformed frame is dropped and reported; it never ends the run.
func (s *Supervisor) Run(ctx context.Context) error {
	s.setState(StateConnecting)
	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(StateDisconnected)
		return ErrStream.Wrap(err)
	}
	defer func() { _ = conn.Close() }()

	// Unblock the pending Read when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	session := uuid.NewString()
	log := s.log.With("session", session, "remote", conn.RemoteAddr().String())
	log.Info("stream connected")
	metrics.StreamConnected.Set(1)
	defer metrics.StreamConnected.Set(0)
	s.setState(StateStreaming)

	var dec Decoder
	buf := make([]byte, 16*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			for _, frame := range dec.Feed(buf[:n]) {
				metrics.FramesDecoded.Inc()
				ev, perr := event.Parse(frame)
				if perr != nil {
					metrics.FramesMalformed.Inc()
					log.Warn("dropping malformed frame",
						"err", perr, "frame", clip(frame))
					continue
				}
				s.sink.Enqueue(ev)
			}
		}
		if err == nil {
			continue
		}

		if terr := dec.Finish(); terr != nil {
			metrics.StreamsTruncated.Inc()
			log.Warn("stream ended mid-frame", "err", terr)
		}

		switch {
		case err == io.EOF:
			log.Info("stream ended gracefully")
			s.setState(StateTerminated)
			return nil
		case ctx.Err() != nil:
			log.Info("ingestion stopped", "err", ctx.Err())
			s.setState(StateTerminated)
			return ctx.Err()
		default:
			log.Error("stream connection lost", "err", err)
			s.setState(StateDisconnected)
			return ErrStream.Wrap(err)
		}
	}
}

// clip bounds a frame for log output.
func clip(frame []byte) string {
	const max = 256
	if len(frame) > max {
		return string(frame[:max]) + "..."
	}
	return string(frame)
}

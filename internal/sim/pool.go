package sim

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
)

// Frame is one wire event. Fare is present only on end frames.
type Frame struct {
	Event  string   `json:"event"`
	TripID int64    `json:"tripId"`
	Lat    float64  `json:"lat"`
	Lng    float64  `json:"lng"`
	Fare   *float64 `json:"fare,omitempty"`
}

// Pool tracks connected clients and broadcasts frames to all of them. A
// client that errors on write, or disconnects, is removed from the pool.
type Pool struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[string]net.Conn
}

// NewPool returns an empty client pool.
func NewPool(log *slog.Logger) *Pool {
	return &Pool{log: log, clients: make(map[string]net.Conn)}
}

// Serve accepts clients from ln until ctx is cancelled.
func (p *Pool) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		id := uuid.NewString()
		p.add(id, conn)
		go p.watch(id, conn)
	}
}

func (p *Pool) add(id string, conn net.Conn) {
	p.mu.Lock()
	p.clients[id] = conn
	p.mu.Unlock()
	p.log.Info("client connected", "client", id, "remote", conn.RemoteAddr().String())
}

// watch blocks on a read so a client disconnect is noticed promptly; the
// protocol is broadcast-only, so any read result means the client is gone.
func (p *Pool) watch(id string, conn net.Conn) {
	buf := make([]byte, 1)
	_, _ = conn.Read(buf)
	p.remove(id, "disconnected")
}

func (p *Pool) remove(id, why string) {
	p.mu.Lock()
	conn, ok := p.clients[id]
	delete(p.clients, id)
	p.mu.Unlock()
	if ok {
		_ = conn.Close()
		p.log.Info("client removed", "client", id, "reason", why)
	}
}

// Announce broadcasts one frame to every connected client.
func (p *Pool) Announce(f Frame) {
	payload, err := json.Marshal(f)
	if err != nil {
		return
	}
	payload = append(payload, '\r', '\n')

	p.mu.Lock()
	type target struct {
		id   string
		conn net.Conn
	}
	targets := make([]target, 0, len(p.clients))
	for id, conn := range p.clients {
		targets = append(targets, target{id, conn})
	}
	p.mu.Unlock()

	for _, t := range targets {
		if _, err := t.conn.Write(payload); err != nil {
			p.remove(t.id, "write failed")
		}
	}
}

// Len returns the number of connected clients.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}

// CloseAll disconnects every client.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, conn := range p.clients {
		_ = conn.Close()
		delete(p.clients, id)
	}
}

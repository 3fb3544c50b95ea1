// Package sim is the synthetic trip generator. It simulates a fleet of
// concurrent trips inside a spawn bounding box and broadcasts their
// begin/update/end events as JSON frames terminated by "\r\n" to every
// connected client.
package sim

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/tlhunter/take-home-test-uber/internal/config"
)

// Params are the tunable simulation settings. They may be swapped while the
// simulation runs; the next tick picks them up.
type Params struct {
	UpdateInterval  time.Duration
	ConcurrentTrips int
	EndProbability  float64
	MinFare         int
	MaxFare         int
	Spawn           config.SpawnBox
}

// ParamsFromConfig extracts the simulation settings from the emitter config.
func ParamsFromConfig(cfg *config.EmitterConf) Params {
	return Params{
		UpdateInterval:  time.Duration(cfg.UpdateIntervalMs) * time.Millisecond,
		ConcurrentTrips: cfg.ConcurrentTrips,
		EndProbability:  cfg.EndProbability,
		MinFare:         cfg.MinFare,
		MaxFare:         cfg.MaxFare,
		Spawn:           cfg.Spawn,
	}
}

type trip struct {
	id  int64
	lat float64
	lng float64
}

// Announcer receives each simulated event frame. *Pool broadcasts them to
// connected clients.
type Announcer interface {
	Announce(Frame)
	Len() int
}

// Simulator drives the trip fleet and announces events to the client pool.
// Run is single-goroutine; SetParams may be called from any goroutine.
type Simulator struct {
	log       *slog.Logger
	pool      Announcer
	params    atomic.Pointer[Params]
	rnd       *rand.Rand
	trips     []*trip
	maxTripID int64
}

// New creates a Simulator broadcasting through pool.
func New(log *slog.Logger, pool Announcer, p Params) *Simulator {
	s := &Simulator{
		log:  log,
		pool: pool,
		rnd:  rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	s.params.Store(&p)
	return s
}

// SetParams swaps the simulation settings for the next tick.
func (s *Simulator) SetParams(p Params) {
	s.params.Store(&p)
	s.log.Info("simulation parameters updated",
		"interval", p.UpdateInterval, "concurrent_trips", p.ConcurrentTrips)
}

// Run seeds the fleet and ticks until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	p := s.params.Load()
	for i := 0; i < p.ConcurrentTrips; i++ {
		s.createTrip(p)
	}

	for {
		p = s.params.Load()
		select {
		case <-time.After(p.UpdateInterval):
			s.tick(p)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Simulator) createTrip(p *Params) {
	s.maxTripID++
	t := &trip{
		id:  s.maxTripID,
		lat: s.rnd.Float64()*(p.Spawn.NE.Lat-p.Spawn.SW.Lat) + p.Spawn.SW.Lat,
		lng: s.rnd.Float64()*(p.Spawn.NE.Lng-p.Spawn.SW.Lng) + p.Spawn.SW.Lng,
	}
	s.trips = append(s.trips, t)
	s.pool.Announce(Frame{Event: "begin", TripID: t.id, Lat: t.lat, Lng: t.lng})
}

// tick advances every trip one step: a small random chance of ending with a
// fare, otherwise a random drift and a position update. Afterwards it spawns
// new trips to drift the fleet back toward the concurrency target.
func (s *Simulator) tick(p *Params) {
	alive := s.trips[:0]
	for _, t := range s.trips {
		if s.rnd.Float64() < p.EndProbability {
			fare := float64(s.rnd.IntN(p.MaxFare-p.MinFare+1) + p.MinFare)
			s.pool.Announce(Frame{
				Event: "end", TripID: t.id, Lat: t.lat, Lng: t.lng, Fare: &fare,
			})
			continue
		}
		t.lat += s.rnd.Float64()*0.01 - 0.005
		t.lng += s.rnd.Float64()*0.01 - 0.005
		s.pool.Announce(Frame{Event: "update", TripID: t.id, Lat: t.lat, Lng: t.lng})
		alive = append(alive, t)
	}
	s.trips = alive

	if s.rnd.Float64() < 0.75 {
		for i := len(s.trips); i < p.ConcurrentTrips+5; i++ {
			if s.rnd.Float64() < 0.65 {
				s.createTrip(p)
			}
		}
	}

	s.log.Info("tick", "concurrent_trips", len(s.trips), "clients", s.pool.Len())
}

package sim

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/tlhunter/take-home-test-uber/internal/config"
)

// captureAnnouncer records every announced frame.
type captureAnnouncer struct {
	frames []Frame
}

func (c *captureAnnouncer) Announce(f Frame) { c.frames = append(c.frames, f) }
func (c *captureAnnouncer) Len() int         { return 0 }

func testParams() Params {
	return Params{
		UpdateInterval:  time.Second,
		ConcurrentTrips: 10,
		EndProbability:  0.01,
		MinFare:         10,
		MaxFare:         29,
		Spawn: config.SpawnBox{
			NE: config.LatLng{Lat: 37.814039, Lng: -122.359200},
			SW: config.LatLng{Lat: 37.704382, Lng: -122.514381},
		},
	}
}

func TestCreateTripSpawnsInsideBox(t *testing.T) {
	rec := &captureAnnouncer{}
	p := testParams()
	s := New(slog.Default(), rec, p)

	for i := 0; i < 50; i++ {
		s.createTrip(&p)
	}

	if len(rec.frames) != 50 {
		t.Fatalf("got %d frames, want 50", len(rec.frames))
	}
	seen := make(map[int64]bool)
	for _, f := range rec.frames {
		if f.Event != "begin" {
			t.Errorf("event = %q, want begin", f.Event)
		}
		if f.TripID <= 0 || seen[f.TripID] {
			t.Errorf("tripId %d is not unique and positive", f.TripID)
		}
		seen[f.TripID] = true
		if f.Lat < p.Spawn.SW.Lat || f.Lat > p.Spawn.NE.Lat ||
			f.Lng < p.Spawn.SW.Lng || f.Lng > p.Spawn.NE.Lng {
			t.Errorf("trip %d spawned outside the box: %v,%v", f.TripID, f.Lat, f.Lng)
		}
		if f.Fare != nil {
			t.Errorf("begin frame carries a fare: %v", *f.Fare)
		}
	}
}

func TestTickEndsTripsWithFares(t *testing.T) {
	rec := &captureAnnouncer{}
	p := testParams()
	p.EndProbability = 1 // every trip ends this tick
	s := New(slog.Default(), rec, p)

	for i := 0; i < 5; i++ {
		s.createTrip(&p)
	}
	rec.frames = nil

	// Shrink the target so any respawning stays bounded.
	p.ConcurrentTrips = 1
	s.tick(&p)

	ends := 0
	for _, f := range rec.frames {
		if f.Event != "end" {
			continue
		}
		ends++
		if f.Fare == nil {
			t.Errorf("end frame for trip %d has no fare", f.TripID)
			continue
		}
		if *f.Fare < float64(p.MinFare) || *f.Fare > float64(p.MaxFare) {
			t.Errorf("fare %v outside [%d, %d]", *f.Fare, p.MinFare, p.MaxFare)
		}
	}
	if ends != 5 {
		t.Errorf("got %d end frames, want 5", ends)
	}
	if len(s.trips) > p.ConcurrentTrips+5 {
		t.Errorf("fleet grew to %d, above target %d", len(s.trips), p.ConcurrentTrips+5)
	}
}

func TestTickMovesSurvivors(t *testing.T) {
	rec := &captureAnnouncer{}
	p := testParams()
	p.EndProbability = 0 // nobody ends
	s := New(slog.Default(), rec, p)

	s.createTrip(&p)
	before := *s.trips[0]
	rec.frames = nil
	s.tick(&p)

	var update *Frame
	for i := range rec.frames {
		if rec.frames[i].Event == "update" {
			update = &rec.frames[i]
			break
		}
	}
	if update == nil {
		t.Fatal("no update frame announced")
	}
	if update.TripID != before.id {
		t.Errorf("update for trip %d, want %d", update.TripID, before.id)
	}
	// Drift is bounded by half a hundredth of a degree per axis.
	if d := update.Lat - before.lat; d < -0.005 || d > 0.005 {
		t.Errorf("lat drifted by %v", d)
	}
	if d := update.Lng - before.lng; d < -0.005 || d > 0.005 {
		t.Errorf("lng drifted by %v", d)
	}
}

func TestPoolBroadcast(t *testing.T) {
	pool := NewPool(slog.Default())

	serverA, clientA := net.Pipe()
	serverB, clientB := net.Pipe()
	pool.add("a", serverA)
	pool.add("b", serverB)
	if pool.Len() != 2 {
		t.Fatalf("pool size = %d, want 2", pool.Len())
	}

	go pool.Announce(Frame{Event: "begin", TripID: 1, Lat: 10, Lng: 10})

	for _, client := range []net.Conn{clientA, clientB} {
		client.SetReadDeadline(time.Now().Add(5 * time.Second))
		line, err := bufio.NewReader(client).ReadString('\n')
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(line) < 2 || line[len(line)-2] != '\r' {
			t.Fatalf("frame %q does not end with CRLF", line)
		}
		var f Frame
		if err := json.Unmarshal([]byte(line), &f); err != nil {
			t.Fatalf("frame %q: %v", line, err)
		}
		if f.Event != "begin" || f.TripID != 1 {
			t.Errorf("frame = %+v", f)
		}
	}
}

func TestPoolDropsDeadClient(t *testing.T) {
	pool := NewPool(slog.Default())

	server, client := net.Pipe()
	pool.add("dead", server)
	client.Close()
	server.Close()

	// The write fails, so the client is removed.
	pool.Announce(Frame{Event: "update", TripID: 2, Lat: 1, Lng: 1})
	if pool.Len() != 0 {
		t.Errorf("pool size = %d, want 0 after write failure", pool.Len())
	}
}

package event

import (
	"encoding/json"
	"time"

	"github.com/zeebo/errs"
)

// ErrMalformedFrame marks a frame that failed to parse or validate.
// A malformed frame is dropped and reported; it never stops ingestion.
var ErrMalformedFrame = errs.Class("malformed frame")

// Kind is the trip lifecycle phase an event describes.
type Kind string

const (
	KindBegin  Kind = "begin"
	KindUpdate Kind = "update"
	KindEnd    Kind = "end"
)

// Valid reports whether k is one of the three known kinds.
func (k Kind) Valid() bool {
	return k == KindBegin || k == KindUpdate || k == KindEnd
}

// Event is one validated trip lifecycle event. Fare is nil except on end
// events, and may be nil even there (a producer that omits the fare on an
// end event is tolerated; the row is stored with a null fare). Created is
// assigned by the persistence layer, never by the producer.
type Event struct {
	Kind    Kind
	TripID  int64
	Lat     float64
	Lng     float64
	Fare    *float64
	Created time.Time
}

// wireEvent mirrors the producer's JSON frame. Pointer fields distinguish
// "absent" from zero values during validation.
type wireEvent struct {
	Event  *string  `json:"event"`
	TripID *int64   `json:"tripId"`
	Lat    *float64 `json:"lat"`
	Lng    *float64 `json:"lng"`
	Fare   *float64 `json:"fare"`
}

// Parse decodes a single frame and validates it against the event schema:
// the kind must be begin/update/end, tripId a positive integer, lat/lng
// present and numeric. Fare is kept only on end events; a negative fare is
// rejected. All failures are of class ErrMalformedFrame.
func Parse(frame []byte) (*Event, error) {
	var w wireEvent
	if err := json.Unmarshal(frame, &w); err != nil {
		return nil, ErrMalformedFrame.Wrap(err)
	}
	if w.Event == nil {
		return nil, ErrMalformedFrame.New("missing event field")
	}
	kind := Kind(*w.Event)
	if !kind.Valid() {
		return nil, ErrMalformedFrame.New("unknown event kind %q", *w.Event)
	}
	if w.TripID == nil {
		return nil, ErrMalformedFrame.New("missing tripId")
	}
	if *w.TripID <= 0 {
		return nil, ErrMalformedFrame.New("tripId %d is not positive", *w.TripID)
	}
	if w.Lat == nil || w.Lng == nil {
		return nil, ErrMalformedFrame.New("missing coordinates")
	}

	ev := &Event{
		Kind:   kind,
		TripID: *w.TripID,
		Lat:    *w.Lat,
		Lng:    *w.Lng,
	}
	if kind == KindEnd && w.Fare != nil {
		if *w.Fare < 0 {
			return nil, ErrMalformedFrame.New("negative fare %v", *w.Fare)
		}
		ev.Fare = w.Fare
	}
	return ev, nil
}

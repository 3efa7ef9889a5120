// Package marker turns resolved trip positions into per-frame marker
// records and writes them in the count-location net format the renderer
// loads.
package marker

import (
	"math"

	"github.com/paulmach/orb"

	"journey-animator/internal/clock"
	"journey-animator/internal/network"
	"journey-animator/internal/position"
)

// Marker is one trip's location in one frame.
type Marker struct {
	TripNo int64
	Code   string
	Name   string
	LinkNo int64
	From   network.NodeNo
	To     network.NodeNo
	RelPos float64 // in [0,1]
	Volume *float64
	Point  orb.Point
}

// New builds the marker for a resolved position. The offset is clamped into
// [0,1] here; the resolver leaves rounding drift in place.
func New(trip *network.Trip, pos position.Position) Marker {
	rel := Clamp01(pos.Offset)
	return Marker{
		TripNo: trip.No,
		Code:   trip.DisplayCode(),
		Name:   clock.Format(int(math.Round(trip.Departure))),
		LinkNo: pos.Link.No,
		From:   pos.From.No,
		To:     pos.To.No,
		RelPos: rel,
		Volume: pos.Volume,
		Point:  Lerp(pos.From.Point, pos.To.Point, rel),
	}
}

func Clamp01(f float64) float64 {
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Lerp returns the point at fraction f of the straight line a -> b.
func Lerp(a, b orb.Point, f float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}

// LabelPoint is where a frame's clock label is drawn: near the top left
// corner of the given extent.
func LabelPoint(b orb.Bound) orb.Point {
	return orb.Point{
		b.Min[0] + 0.08*(b.Max[0]-b.Min[0]),
		b.Min[1] + 0.95*(b.Max[1]-b.Min[1]),
	}
}

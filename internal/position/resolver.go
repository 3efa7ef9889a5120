// Package position locates a trip on the network at a point in time, as a
// fractional offset along a directed link.
package position

import (
	"errors"
	"fmt"

	"journey-animator/internal/network"
)

// ErrInactive means the trip has no position at the requested time.
var ErrInactive = errors.New("trip not active")

// Source is the read side of the network a Resolver needs.
// *network.Snapshot implements it.
type Source interface {
	Itinerary(t *network.Trip) []network.ItineraryItem
	RouteGeometry(t *network.Trip) (*network.RouteGeometry, error)
	Link(from, to network.NodeNo) (network.Link, error)
	Node(no network.NodeNo) (network.Node, error)
}

// Position is a trip's location: Offset along the link From -> To, plus the
// volume recorded on the itinerary item the trip is leaving. Offset is not
// clamped and may drift marginally outside [0,1].
type Position struct {
	From   network.Node
	To     network.Node
	Link   network.Link
	Offset float64
	Volume *float64
}

// Resolver holds no mutable state; it is safe for concurrent use as long as
// the Source is not modified.
type Resolver struct {
	src Source
}

func NewResolver(src Source) *Resolver {
	return &Resolver{src: src}
}

// Resolve returns the trip's position at time at, or false when it has none.
// Lookup failures count as no position.
func (r *Resolver) Resolve(trip *network.Trip, at float64) (Position, bool) {
	p, err := r.Locate(trip, at)
	if err != nil {
		return Position{}, false
	}
	return p, true
}

// Locate is Resolve with the reason for a missing position: ErrInactive, or
// an error wrapping network.ErrLookup.
func (r *Resolver) Locate(trip *network.Trip, at float64) (Position, error) {
	if at < trip.Departure || at > trip.Arrival {
		return Position{}, ErrInactive
	}
	items := r.src.Itinerary(trip)
	seg, ok := findSegment(items, at)
	if !ok {
		return Position{}, ErrInactive
	}

	geom, err := r.src.RouteGeometry(trip)
	if err != nil {
		return Position{}, fmt.Errorf("trip %d: %w", trip.No, err)
	}
	nodes, lengths, err := walkRoute(geom, seg.fromIndex, seg.toIndex)
	if err != nil {
		return Position{}, fmt.Errorf("trip %d: %w", trip.No, err)
	}
	if len(nodes) != len(lengths)+1 {
		return Position{}, ErrInactive
	}

	k, into := place(lengths, seg.offset)
	link, err := r.src.Link(nodes[k], nodes[k+1])
	if err != nil {
		return Position{}, fmt.Errorf("trip %d: %w", trip.No, err)
	}
	from, err := r.src.Node(nodes[k])
	if err != nil {
		return Position{}, fmt.Errorf("trip %d: %w", trip.No, err)
	}
	to, err := r.src.Node(nodes[k+1])
	if err != nil {
		return Position{}, fmt.Errorf("trip %d: %w", trip.No, err)
	}

	offset := 0.0
	if link.Length > 0 {
		offset = into / link.Length
	}
	return Position{From: from, To: to, Link: link, Offset: offset, Volume: seg.volume}, nil
}

// segment is the stretch of route between two consecutive itinerary items,
// with the trip's time fraction along it.
type segment struct {
	fromIndex int
	toIndex   int
	offset    float64
	volume    *float64
}

// findSegment looks first for a dwell at an intermediate stop, then for a
// run between two stops. The first and last stops never count as dwells.
func findSegment(items []network.ItineraryItem, at float64) (segment, bool) {
	n := len(items)
	for i := 1; i < n-1; i++ {
		if items[i].Arrival <= at && at <= items[i].Departure {
			return segment{
				fromIndex: items[i].RouteIndex,
				toIndex:   items[i+1].RouteIndex,
				offset:    0,
				volume:    items[i].Volume,
			}, true
		}
	}
	for i := 0; i < n-1; i++ {
		dep, arr := items[i].Departure, items[i+1].Arrival
		if dep <= at && at <= arr {
			offset := 0.0
			if arr-dep > 0 {
				offset = (at - dep) / (arr - dep)
			}
			return segment{
				fromIndex: items[i].RouteIndex,
				toIndex:   items[i+1].RouteIndex,
				offset:    offset,
				volume:    items[i].Volume,
			}, true
		}
	}
	return segment{}, false
}

// walkRoute lists the nodes between route items from and to (1-based,
// inclusive) and the length to travel after each node but the last. A stop
// point at either end contributes only the part of its link that is
// travelled. Stop points strictly inside the span are skipped.
func walkRoute(g *network.RouteGeometry, from, to int) ([]network.NodeNo, []float64, error) {
	if from >= to {
		return nil, nil, fmt.Errorf("%w: route %s span %d..%d is empty", network.ErrLookup, g.RouteID, from, to)
	}
	var nodes []network.NodeNo
	var lengths []float64

	first, err := g.ItemAt(from)
	if err != nil {
		return nil, nil, err
	}
	if first.IsOnNode() {
		nodes = append(nodes, first.NodeNo)
		lengths = append(lengths, first.OutLength())
	} else {
		if first.OutLink == nil {
			return nil, nil, fmt.Errorf("%w: route %s item %d has no outgoing link", network.ErrLookup, g.RouteID, from)
		}
		nodes = append(nodes, first.OutLink.From)
		lengths = append(lengths, first.OutLength()*(1-first.RelPos))
	}

	for idx := from + 1; idx < to; idx++ {
		it, err := g.ItemAt(idx)
		if err != nil {
			return nil, nil, err
		}
		if it.IsOnNode() {
			nodes = append(nodes, it.NodeNo)
			lengths = append(lengths, it.OutLength())
		}
	}

	last, err := g.ItemAt(to)
	if err != nil {
		return nil, nil, err
	}
	if last.IsOnNode() {
		nodes = append(nodes, last.NodeNo)
	} else {
		if last.InLink == nil {
			return nil, nil, fmt.Errorf("%w: route %s item %d has no incoming link", network.ErrLookup, g.RouteID, to)
		}
		lengths[len(lengths)-1] = last.InLength() * last.RelPos
		nodes = append(nodes, last.InLink.To)
	}
	return nodes, lengths, nil
}

// place finds the segment holding fraction offset of the total length and
// how far into that segment the point lies.
func place(lengths []float64, offset float64) (int, float64) {
	total := 0.0
	for _, l := range lengths {
		total += l
	}
	target := offset * total
	cum := 0.0
	k := 0
	for k < len(lengths)-1 && cum+lengths[k] < target {
		cum += lengths[k]
		k++
	}
	return k, target - cum
}

// Package network holds a read-only snapshot of a scheduled transit network:
// nodes, directed links, route geometries and the trips that run them.
package network

import (
	"fmt"
	"sort"

	"github.com/paulmach/orb"
)

// RouteItemRef describes a route item by link keys, before links are
// resolved against the snapshot.
type RouteItemRef struct {
	Index  int
	NodeNo NodeNo
	Out    *LinkKey
	In     *LinkKey
	RelPos float64
}

// Snapshot is built once with AddRoute/AddTrip and is read-only afterwards.
// Reads are safe for concurrent use once building is done.
type Snapshot struct {
	nodes  map[NodeNo]Node
	links  map[LinkKey]Link
	routes map[string]*RouteGeometry
	trips  []*Trip
}

func NewSnapshot(nodes []Node, links []Link) (*Snapshot, error) {
	s := &Snapshot{
		nodes:  make(map[NodeNo]Node, len(nodes)),
		links:  make(map[LinkKey]Link, len(links)),
		routes: make(map[string]*RouteGeometry),
	}
	for _, n := range nodes {
		if n.No <= 0 {
			return nil, fmt.Errorf("node key must be positive, got %d", n.No)
		}
		if _, dup := s.nodes[n.No]; dup {
			return nil, fmt.Errorf("duplicate node %d", n.No)
		}
		s.nodes[n.No] = n
	}
	for _, l := range links {
		if _, dup := s.links[l.Key()]; dup {
			return nil, fmt.Errorf("duplicate link %d->%d", l.From, l.To)
		}
		if l.Length < 0 {
			return nil, fmt.Errorf("link %d->%d has negative length %v", l.From, l.To, l.Length)
		}
		s.links[l.Key()] = l
	}
	return s, nil
}

// AddRoute resolves the items' link keys and stores the geometry. Items are
// ordered by Index and must be numbered 1..n.
func (s *Snapshot) AddRoute(routeID string, refs []RouteItemRef) error {
	sorted := append([]RouteItemRef(nil), refs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })

	g := &RouteGeometry{RouteID: routeID, Items: make([]RouteItem, 0, len(sorted))}
	for i, ref := range sorted {
		if ref.Index != i+1 {
			return fmt.Errorf("route %s: item index %d out of sequence (want %d)", routeID, ref.Index, i+1)
		}
		item := RouteItem{Index: ref.Index, NodeNo: ref.NodeNo, RelPos: ref.RelPos}
		if ref.Out != nil {
			l, err := s.Link(ref.Out.From, ref.Out.To)
			if err != nil {
				return fmt.Errorf("route %s item %d: %w", routeID, ref.Index, err)
			}
			item.OutLink = &l
		}
		if ref.In != nil {
			l, err := s.Link(ref.In.From, ref.In.To)
			if err != nil {
				return fmt.Errorf("route %s item %d: %w", routeID, ref.Index, err)
			}
			item.InLink = &l
		}
		g.Items = append(g.Items, item)
	}
	s.routes[routeID] = g
	return nil
}

func (s *Snapshot) AddTrip(t Trip) {
	items := append([]ItineraryItem(nil), t.Items...)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Index < items[j].Index })
	t.Items = items
	s.trips = append(s.trips, &t)
}

func (s *Snapshot) Node(no NodeNo) (Node, error) {
	n, ok := s.nodes[no]
	if !ok {
		return Node{}, lookupErr("node %d", no)
	}
	return n, nil
}

// Link looks up the directed link from -> to.
func (s *Snapshot) Link(from, to NodeNo) (Link, error) {
	l, ok := s.links[LinkKey{From: from, To: to}]
	if !ok {
		return Link{}, lookupErr("link %d->%d", from, to)
	}
	return l, nil
}

func (s *Snapshot) Route(routeID string) (*RouteGeometry, error) {
	g, ok := s.routes[routeID]
	if !ok {
		return nil, lookupErr("route %s", routeID)
	}
	return g, nil
}

func (s *Snapshot) RouteGeometry(t *Trip) (*RouteGeometry, error) { return s.Route(t.RouteID) }

func (s *Snapshot) Itinerary(t *Trip) []ItineraryItem { return t.Items }

// Trips returns every trip in load order.
func (s *Snapshot) Trips() []*Trip { return s.trips }

func (s *Snapshot) NodeCount() int { return len(s.nodes) }

func (s *Snapshot) LinkCount() int { return len(s.links) }

// Bound is the extent of all node coordinates.
func (s *Snapshot) Bound() orb.Bound {
	mp := make(orb.MultiPoint, 0, len(s.nodes))
	for _, n := range s.nodes {
		mp = append(mp, n.Point)
	}
	return mp.Bound()
}

// Validate checks that a trip's itinerary lines up with its route geometry.
// Every failure wraps ErrLookup.
func (s *Snapshot) Validate(t *Trip) error {
	g, err := s.RouteGeometry(t)
	if err != nil {
		return fmt.Errorf("trip %d: %w", t.No, err)
	}
	prevIdx := 0
	prevDep := 0.0
	for i, it := range t.Items {
		if it.Arrival < 0 || it.Departure < it.Arrival {
			return lookupErr("trip %d item %d: arrival %v / departure %v", t.No, it.Index, it.Arrival, it.Departure)
		}
		if i > 0 && it.Arrival < prevDep {
			return lookupErr("trip %d item %d: arrives at %v before previous departure %v", t.No, it.Index, it.Arrival, prevDep)
		}
		if it.RouteIndex <= prevIdx {
			return lookupErr("trip %d item %d: route index %d not increasing", t.No, it.Index, it.RouteIndex)
		}
		ri, err := g.ItemAt(it.RouteIndex)
		if err != nil {
			return fmt.Errorf("trip %d item %d: %w", t.No, it.Index, err)
		}
		if err := s.checkItem(ri, i > 0, i < len(t.Items)-1); err != nil {
			return fmt.Errorf("trip %d item %d: %w", t.No, it.Index, err)
		}
		prevIdx, prevDep = it.RouteIndex, it.Departure
	}
	return nil
}

// checkItem verifies the references a route item needs when it closes a
// segment (needsIn) or opens one (needsOut).
func (s *Snapshot) checkItem(ri RouteItem, needsIn, needsOut bool) error {
	if ri.IsOnNode() {
		if _, err := s.Node(ri.NodeNo); err != nil {
			return err
		}
		if needsOut && ri.OutLink == nil {
			return lookupErr("route item %d on node %d has no outgoing link", ri.Index, ri.NodeNo)
		}
		return nil
	}
	if needsOut && ri.OutLink == nil {
		return lookupErr("route item %d stop point has no outgoing link", ri.Index)
	}
	if needsIn && ri.InLink == nil {
		return lookupErr("route item %d stop point has no incoming link", ri.Index)
	}
	return nil
}

// ValidTrips splits the snapshot's trips into those that pass Validate and
// the errors for the rest.
func (s *Snapshot) ValidTrips() ([]*Trip, []error) {
	var ok []*Trip
	var bad []error
	for _, t := range s.trips {
		if err := s.Validate(t); err != nil {
			bad = append(bad, err)
			continue
		}
		ok = append(ok, t)
	}
	return ok, bad
}

// Package networktest builds small in-memory networks for tests.
package networktest

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"

	"journey-animator/internal/network"
)

// Chain builds nodes 1..len(lengths)+1 placed along the x axis, linked in
// order with the given link lengths, and a route "R" that passes through
// every node.
func Chain(t testing.TB, lengths ...float64) *network.Snapshot {
	t.Helper()
	nodes := make([]network.Node, 0, len(lengths)+1)
	links := make([]network.Link, 0, len(lengths))
	x := 0.0
	for i := 0; i <= len(lengths); i++ {
		nodes = append(nodes, network.Node{No: network.NodeNo(i + 1), Point: orb.Point{x, 0}})
		if i < len(lengths) {
			links = append(links, network.Link{
				No:     int64(100 + i + 1),
				From:   network.NodeNo(i + 1),
				To:     network.NodeNo(i + 2),
				Length: lengths[i],
			})
			x += lengths[i]
		}
	}
	snap, err := network.NewSnapshot(nodes, links)
	require.NoError(t, err)

	refs := make([]network.RouteItemRef, 0, len(nodes))
	for i := range nodes {
		refs = append(refs, NodeItem(i+1, network.NodeNo(i+1), len(nodes)))
	}
	require.NoError(t, snap.AddRoute("R", refs))
	return snap
}

// NodeItem is a route item on node no, at position index of a simple chain
// route with n items.
func NodeItem(index int, no network.NodeNo, n int) network.RouteItemRef {
	ref := network.RouteItemRef{Index: index, NodeNo: no}
	if index < n {
		ref.Out = &network.LinkKey{From: no, To: no + 1}
	}
	if index > 1 {
		ref.In = &network.LinkKey{From: no - 1, To: no}
	}
	return ref
}

// StopItem is a stop point at relPos along link from -> to.
func StopItem(index int, from, to network.NodeNo, relPos float64) network.RouteItemRef {
	k := network.LinkKey{From: from, To: to}
	return network.RouteItemRef{Index: index, Out: &k, In: &k, RelPos: relPos}
}

// Stop is an itinerary item.
func Stop(index int, arr, dep float64, routeIndex int, volume *float64) network.ItineraryItem {
	return network.ItineraryItem{Index: index, Arrival: arr, Departure: dep, RouteIndex: routeIndex, Volume: volume}
}

// Trip builds a trip on route "R" whose span is taken from its first and
// last items.
func Trip(no int64, items ...network.ItineraryItem) network.Trip {
	t := network.Trip{No: no, RouteID: "R", LineName: "L1", Items: items}
	if len(items) > 0 {
		t.Departure = items[0].Departure
		t.Arrival = items[len(items)-1].Arrival
	}
	return t
}

func Vol(v float64) *float64 { return &v }

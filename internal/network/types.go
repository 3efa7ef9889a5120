package network

import "github.com/paulmach/orb"

// NodeNo is a node key. Valid keys are positive.
type NodeNo int64

type Node struct {
	No    NodeNo
	Name  string
	Point orb.Point // planar x, y
}

// LinkKey identifies a directed link by its end nodes. It is unique in a
// network.
type LinkKey struct {
	From NodeNo
	To   NodeNo
}

type Link struct {
	No     int64
	From   NodeNo
	To     NodeNo
	Length float64
}

func (l Link) Key() LinkKey { return LinkKey{From: l.From, To: l.To} }

// RouteItem is one element of a route's geometry: either the route passes
// through a node (NodeNo > 0) or a stop point sits part way along a link
// (NodeNo == 0, RelPos in [0,1]).
type RouteItem struct {
	Index   int // 1-based position in the route
	NodeNo  NodeNo
	OutLink *Link // link leaving this item, nil at the end of the route
	InLink  *Link // link arriving at this item, nil at the start of the route
	RelPos  float64
}

// IsOnNode reports whether the item passes exactly through a node. It never
// fails: any item without a positive node key is a link stop.
func (it RouteItem) IsOnNode() bool { return it.NodeNo > 0 }

func (it RouteItem) OutLength() float64 {
	if it.OutLink == nil {
		return 0
	}
	return it.OutLink.Length
}

func (it RouteItem) InLength() float64 {
	if it.InLink == nil {
		return 0
	}
	return it.InLink.Length
}

// RouteGeometry is the ordered path of a route, shared by every trip that
// runs it.
type RouteGeometry struct {
	RouteID string
	Items   []RouteItem
}

func (g *RouteGeometry) Len() int { return len(g.Items) }

// ItemAt returns the item at a 1-based index.
func (g *RouteGeometry) ItemAt(index int) (RouteItem, error) {
	if index < 1 || index > len(g.Items) {
		return RouteItem{}, lookupErr("route %s has no item %d (len %d)", g.RouteID, index, len(g.Items))
	}
	return g.Items[index-1], nil
}

// ItineraryItem is one scheduled event of a trip. RouteIndex points into the
// trip's RouteGeometry (1-based), not into the itinerary.
type ItineraryItem struct {
	Index      int
	Arrival    float64
	Departure  float64
	RouteIndex int
	Volume     *float64
}

// Trip is one vehicle journey. Times are seconds from the reference
// midnight and may exceed one day.
type Trip struct {
	No        int64
	RouteID   string
	LineName  string
	Code      string
	Departure float64
	Arrival   float64
	Items     []ItineraryItem
}

// DisplayCode is the short label shown next to a trip's marker.
func (t *Trip) DisplayCode() string {
	if t.Code != "" {
		return t.Code
	}
	return t.LineName
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/paulmach/orb"

	"journey-animator/internal/logging"
	"journey-animator/internal/network"
)

// LoadSnapshot reads the whole network store into a read-only snapshot.
// The queries take no parameters so they run unchanged on both drivers.
func LoadSnapshot(ctx context.Context, db *sql.DB) (*network.Snapshot, error) {
	nodes, err := fetchNodes(ctx, db)
	if err != nil {
		return nil, err
	}
	links, err := fetchLinks(ctx, db)
	if err != nil {
		return nil, err
	}
	snap, err := network.NewSnapshot(nodes, links)
	if err != nil {
		return nil, fmt.Errorf("build snapshot: %w", err)
	}

	routes, order, err := fetchRouteItems(ctx, db)
	if err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)
	for _, id := range order {
		// A broken route only takes its own trips down; they fail validation later.
		if err := snap.AddRoute(id, routes[id]); err != nil {
			logger.Warn("skipping route", slog.String("route", id), slog.String("error", err.Error()))
		}
	}

	trips, err := fetchTrips(ctx, db)
	if err != nil {
		return nil, err
	}
	for _, t := range trips {
		snap.AddTrip(t)
	}
	return snap, nil
}

func fetchNodes(ctx context.Context, db *sql.DB) ([]network.Node, error) {
	rows, err := db.QueryContext(ctx, `SELECT no, COALESCE(name, ''), x, y FROM nodes ORDER BY no`)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()
	var nodes []network.Node
	for rows.Next() {
		var n network.Node
		var x, y float64
		if err := rows.Scan(&n.No, &n.Name, &x, &y); err != nil {
			return nil, err
		}
		n.Point = orb.Point{x, y}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

func fetchLinks(ctx context.Context, db *sql.DB) ([]network.Link, error) {
	rows, err := db.QueryContext(ctx, `SELECT no, from_node_no, to_node_no, length FROM links ORDER BY no, from_node_no, to_node_no`)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()
	var links []network.Link
	for rows.Next() {
		var l network.Link
		if err := rows.Scan(&l.No, &l.From, &l.To, &l.Length); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func fetchRouteItems(ctx context.Context, db *sql.DB) (map[string][]network.RouteItemRef, []string, error) {
	q := `SELECT route_id, idx, COALESCE(node_no, 0),
                 out_from_node, out_to_node, in_from_node, in_to_node,
                 COALESCE(rel_pos, 0)
          FROM line_route_items
          ORDER BY route_id, idx`
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, fmt.Errorf("query line_route_items: %w", err)
	}
	defer rows.Close()

	routes := make(map[string][]network.RouteItemRef)
	var order []string
	for rows.Next() {
		var routeID string
		var ref network.RouteItemRef
		var outFrom, outTo, inFrom, inTo sql.NullInt64
		if err := rows.Scan(&routeID, &ref.Index, &ref.NodeNo, &outFrom, &outTo, &inFrom, &inTo, &ref.RelPos); err != nil {
			return nil, nil, err
		}
		ref.Out = linkKey(outFrom, outTo)
		ref.In = linkKey(inFrom, inTo)
		if _, seen := routes[routeID]; !seen {
			order = append(order, routeID)
		}
		routes[routeID] = append(routes[routeID], ref)
	}
	return routes, order, rows.Err()
}

func linkKey(from, to sql.NullInt64) *network.LinkKey {
	if !from.Valid || !to.Valid {
		return nil
	}
	return &network.LinkKey{From: network.NodeNo(from.Int64), To: network.NodeNo(to.Int64)}
}

func fetchTrips(ctx context.Context, db *sql.DB) ([]network.Trip, error) {
	rows, err := db.QueryContext(ctx, `SELECT no, route_id, COALESCE(line_name, ''), COALESCE(code, ''), dep, arr
          FROM vehicle_journeys ORDER BY no`)
	if err != nil {
		return nil, fmt.Errorf("query vehicle_journeys: %w", err)
	}
	var trips []network.Trip
	index := make(map[int64]int)
	for rows.Next() {
		var t network.Trip
		if err := rows.Scan(&t.No, &t.RouteID, &t.LineName, &t.Code, &t.Departure, &t.Arrival); err != nil {
			rows.Close()
			return nil, err
		}
		index[t.No] = len(trips)
		trips = append(trips, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT journey_no, idx, arr, dep, route_index, volume
          FROM vehicle_journey_items ORDER BY journey_no, idx`)
	if err != nil {
		return nil, fmt.Errorf("query vehicle_journey_items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var journeyNo int64
		var it network.ItineraryItem
		var vol sql.NullFloat64
		if err := rows.Scan(&journeyNo, &it.Index, &it.Arrival, &it.Departure, &it.RouteIndex, &vol); err != nil {
			return nil, err
		}
		if vol.Valid {
			v := vol.Float64
			it.Volume = &v
		}
		i, ok := index[journeyNo]
		if !ok {
			continue
		}
		trips[i].Items = append(trips[i].Items, it)
	}
	return trips, rows.Err()
}

package db

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-animator/internal/network"
	"journey-animator/internal/position"
)

func TestDriver(t *testing.T) {
	testCases := []struct {
		dsn        string
		wantDriver string
		wantSource string
	}{
		{"sqlite://network.db", "sqlite", "network.db"},
		{"sqlite://:memory:", "sqlite", ":memory:"},
		{"file:net.db?mode=ro", "sqlite", "file:net.db?mode=ro"},
		{"postgres://u@h:5432/net", "pgx", "postgres://u@h:5432/net"},
		{"postgresql://u@h/net", "pgx", "postgresql://u@h/net"},
		{"host=h dbname=net", "pgx", "host=h dbname=net"},
	}
	for _, tc := range testCases {
		t.Run(tc.dsn, func(t *testing.T) {
			driver, source, err := Driver(tc.dsn)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDriver, driver)
			assert.Equal(t, tc.wantSource, source)
		})
	}

	for _, bad := range []string{"", "sqlite://", "mysql://x/y"} {
		_, _, err := Driver(bad)
		assert.Error(t, err, bad)
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open("sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	require.NoError(t, Ping(ctx, conn))
	require.NoError(t, EnsureSchema(ctx, conn))
	return conn
}

func exec(t *testing.T, conn *sql.DB, q string, args ...any) {
	t.Helper()
	_, err := conn.Exec(q, args...)
	require.NoError(t, err, q)
}

// seed stores nodes 1..3 linked 1->2->3 (500m each), route "L1-1" with a
// stop point at 0.4 of 2->3, and two journeys.
func seed(t *testing.T, conn *sql.DB) {
	for i, xy := range [][2]float64{{0, 0}, {500, 0}, {1000, 0}} {
		exec(t, conn, `INSERT INTO nodes (no, name, x, y) VALUES (?, ?, ?, ?)`, i+1, "N", xy[0], xy[1])
	}
	exec(t, conn, `INSERT INTO links (no, from_node_no, to_node_no, length) VALUES (11, 1, 2, 500), (12, 2, 3, 500)`)
	exec(t, conn, `INSERT INTO line_route_items (route_id, idx, node_no, out_from_node, out_to_node, in_from_node, in_to_node, rel_pos) VALUES
        ('L1-1', 1, 1, 1, 2, NULL, NULL, NULL),
        ('L1-1', 2, 2, 2, 3, 1, 2, NULL),
        ('L1-1', 3, NULL, 2, 3, 2, 3, 0.4),
        ('L1-1', 4, 3, NULL, NULL, 2, 3, NULL)`)
	exec(t, conn, `INSERT INTO vehicle_journeys (no, route_id, line_name, code, dep, arr) VALUES
        (1, 'L1-1', 'L1', 'L1a', 21600, 21900),
        (2, 'L1-1', 'L1', NULL, 22000, 22100)`)
	exec(t, conn, `INSERT INTO vehicle_journey_items (journey_no, idx, arr, dep, route_index, volume) VALUES
        (1, 2, 21900, 21900, 4, NULL),
        (1, 1, 21600, 21600, 1, 35.5),
        (2, 1, 22000, 22000, 1, 4),
        (2, 2, 22100, 22100, 3, NULL)`)
}

func TestLoadSnapshot(t *testing.T) {
	conn := openTestDB(t)
	seed(t, conn)

	snap, err := LoadSnapshot(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.NodeCount())
	assert.Equal(t, 2, snap.LinkCount())

	n, err := snap.Node(2)
	require.NoError(t, err)
	assert.Equal(t, 500.0, n.Point[0])

	g, err := snap.Route("L1-1")
	require.NoError(t, err)
	require.Equal(t, 4, g.Len())
	stop, err := g.ItemAt(3)
	require.NoError(t, err)
	assert.False(t, stop.IsOnNode())
	assert.Equal(t, 0.4, stop.RelPos)
	require.NotNil(t, stop.InLink)
	assert.Equal(t, int64(12), stop.InLink.No)
	first, err := g.ItemAt(1)
	require.NoError(t, err)
	assert.Nil(t, first.InLink)

	trips := snap.Trips()
	require.Len(t, trips, 2)
	assert.Equal(t, "L1a", trips[0].DisplayCode())
	assert.Equal(t, "L1", trips[1].DisplayCode())
	require.Len(t, trips[0].Items, 2)
	assert.Equal(t, 1, trips[0].Items[0].Index, "items come back in itinerary order")
	require.NotNil(t, trips[0].Items[0].Volume)
	assert.Equal(t, 35.5, *trips[0].Items[0].Volume)
	assert.Nil(t, trips[0].Items[1].Volume)

	ok, bad := snap.ValidTrips()
	assert.Len(t, ok, 2)
	assert.Empty(t, bad)

	// Journey 2 ends at the stop point: 500m of 1->2 then 200m of 2->3.
	r := position.NewResolver(snap)
	p, active := r.Resolve(trips[1], 22100)
	require.True(t, active)
	assert.Equal(t, network.NodeNo(2), p.From.No)
	assert.Equal(t, network.NodeNo(3), p.To.No)
	assert.InDelta(t, 0.4, p.Offset, 1e-9)
}

func TestLoadSnapshotSkipsBrokenRoute(t *testing.T) {
	conn := openTestDB(t)
	seed(t, conn)
	exec(t, conn, `INSERT INTO line_route_items (route_id, idx, node_no, out_from_node, out_to_node) VALUES ('BAD', 1, 1, 1, 3)`)
	exec(t, conn, `INSERT INTO vehicle_journeys (no, route_id, dep, arr) VALUES (3, 'BAD', 0, 10)`)

	snap, err := LoadSnapshot(context.Background(), conn)
	require.NoError(t, err)
	_, err = snap.Route("BAD")
	assert.ErrorIs(t, err, network.ErrLookup)

	ok, bad := snap.ValidTrips()
	assert.Len(t, ok, 2)
	assert.Len(t, bad, 1)
}

func TestLoadSnapshotEmpty(t *testing.T) {
	conn := openTestDB(t)
	snap, err := LoadSnapshot(context.Background(), conn)
	require.NoError(t, err)
	assert.Empty(t, snap.Trips())
}

func TestEnsureSchemaIsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	assert.NoError(t, EnsureSchema(context.Background(), conn))
}

package animate

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"journey-animator/internal/logging"
	"journey-animator/internal/marker"
	"journey-animator/internal/metrics"
	"journey-animator/internal/network"
	"journey-animator/internal/network/networktest"
	"journey-animator/internal/publisher"
)

type memSink struct {
	mu     sync.Mutex
	frames []marker.Frame
	failAt int
}

func (s *memSink) WriteFrame(f marker.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAt > 0 && len(s.frames)+1 == s.failAt {
		return errors.New("disk full")
	}
	s.frames = append(s.frames, f)
	return nil
}

type memPublisher struct {
	msgs []publisher.FrameMessage
	err  error
}

func (p *memPublisher) PublishFrame(_ context.Context, msg publisher.FrameMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

func (p *memPublisher) Close() {}

func TestWindow(t *testing.T) {
	testCases := []struct {
		name string
		w    Window
		want []int
	}{
		{"exclusive end", Window{Start: 0, End: 10, Step: 5}, []int{0, 5}},
		{"partial last step", Window{Start: 0, End: 11, Step: 5}, []int{0, 5, 10}},
		{"default morning window", Window{Start: 21600, End: 21611, Step: 5}, []int{21600, 21605, 21610}},
		{"empty", Window{Start: 10, End: 10, Step: 5}, []int{}},
		{"zero step", Window{Start: 0, End: 10}, []int{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.w.Times())
			assert.Equal(t, len(tc.want), tc.w.Len())
		})
	}
}

// twoTrips runs trip 2 over 0..100 and trip 1 over 50..150 on a 1000m
// chain; trip 3 is invalid.
func twoTrips(t *testing.T) *network.Snapshot {
	snap := networktest.Chain(t, 1000)
	snap.AddTrip(networktest.Trip(2, networktest.Stop(1, 0, 0, 1, networktest.Vol(8)), networktest.Stop(2, 100, 100, 2, nil)))
	snap.AddTrip(networktest.Trip(1, networktest.Stop(1, 50, 50, 1, nil), networktest.Stop(2, 150, 150, 2, nil)))
	snap.AddTrip(networktest.Trip(3, networktest.Stop(1, 0, 0, 2, nil), networktest.Stop(2, 100, 100, 1, nil)))
	return snap
}

func TestFrame(t *testing.T) {
	a := New(twoTrips(t), &memSink{}, Options{Workers: 2})
	require.Len(t, a.Trips(), 2, "invalid trip is skipped")
	_, err := uuid.Parse(a.RunID())
	assert.NoError(t, err)

	f, err := a.Frame(context.Background(), 75)
	require.NoError(t, err)
	require.Len(t, f.Markers, 2)
	assert.Equal(t, int64(1), f.Markers[0].TripNo, "markers are ordered by trip")
	assert.InDelta(t, 0.25, f.Markers[0].RelPos, 1e-9)
	assert.Equal(t, int64(2), f.Markers[1].TripNo)
	assert.InDelta(t, 0.75, f.Markers[1].RelPos, 1e-9)
	assert.Equal(t, 8.0, *f.Markers[1].Volume)
	assert.InDelta(t, 750, f.Markers[1].Point[0], 1e-9)

	f, err = a.Frame(context.Background(), 125)
	require.NoError(t, err)
	require.Len(t, f.Markers, 1)
	assert.Equal(t, int64(1), f.Markers[0].TripNo)

	f, err = a.Frame(context.Background(), 500)
	require.NoError(t, err)
	assert.Empty(t, f.Markers)
}

func TestRun(t *testing.T) {
	sink := &memSink{}
	pub := &memPublisher{}
	col := metrics.NewCollector(50 * time.Second)
	var logs bytes.Buffer
	a := New(twoTrips(t), sink, Options{
		Workers:    4,
		Publishers: map[string]publisher.Publisher{"mem": pub},
		Metrics:    col,
		Logger:     logging.NewStructuredLogger(&logs, slog.LevelInfo),
	})

	require.NoError(t, a.Run(context.Background(), Window{Start: 0, End: 200, Step: 50}))

	require.Len(t, sink.frames, 4)
	counts := []int{}
	for _, f := range sink.frames {
		counts = append(counts, len(f.Markers))
	}
	assert.Equal(t, []int{1, 2, 2, 1}, counts)

	require.Len(t, pub.msgs, 4)
	assert.Equal(t, a.RunID(), pub.msgs[0].RunID)
	assert.Equal(t, "00:00:50", pub.msgs[1].Clock)

	assert.Equal(t, 4.0, testutil.ToFloat64(col.Frames))
	assert.Equal(t, 6.0, testutil.ToFloat64(col.Markers))
	assert.Equal(t, 2.0, testutil.ToFloat64(col.Inactive))
	assert.Equal(t, 2.0, testutil.ToFloat64(col.TripsLoaded))
	assert.Equal(t, 1.0, testutil.ToFloat64(col.InvalidTrips))

	assert.Contains(t, logs.String(), `"msg":"skipping trip"`)
	assert.Contains(t, logs.String(), `"msg":"frame written"`)
}

func TestRunWritesFrameFiles(t *testing.T) {
	sink, err := marker.NewDirSink(t.TempDir(), "DB_API_")
	require.NoError(t, err)
	a := New(twoTrips(t), sink, Options{Logger: logging.NewStructuredLogger(&bytes.Buffer{}, slog.LevelInfo)})

	require.NoError(t, a.Run(context.Background(), Window{Start: 50, End: 51, Step: 5}))
	data, err := os.ReadFile(sink.Path(50))
	require.NoError(t, err)
	assert.Contains(t, string(data), "* Time: 00:00:50\n")
	assert.Contains(t, string(data), "\n1;L1;00:00:50;101;1;2;0;\n")
	assert.Contains(t, string(data), "\n2;L1;00:00:00;101;1;2;0.5;8\n")
}

func TestRunStopsOnSinkError(t *testing.T) {
	sink := &memSink{failAt: 2}
	a := New(twoTrips(t), sink, Options{Logger: logging.NewStructuredLogger(&bytes.Buffer{}, slog.LevelInfo)})

	err := a.Run(context.Background(), Window{Start: 0, End: 200, Step: 50})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "00:00:50")
	assert.Len(t, sink.frames, 1)
}

func TestRunKeepsGoingWhenPublishFails(t *testing.T) {
	sink := &memSink{}
	pub := &memPublisher{err: errors.New("broker down")}
	var logs bytes.Buffer
	a := New(twoTrips(t), sink, Options{
		Publishers: map[string]publisher.Publisher{"nats": pub},
		Logger:     logging.NewStructuredLogger(&logs, slog.LevelInfo),
	})

	require.NoError(t, a.Run(context.Background(), Window{Start: 0, End: 100, Step: 50}))
	assert.Len(t, sink.frames, 2)
	assert.Contains(t, logs.String(), `"msg":"publish failed"`)
	assert.Contains(t, logs.String(), `"sink":"nats"`)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &memSink{}
	a := New(twoTrips(t), sink, Options{Logger: logging.NewStructuredLogger(&bytes.Buffer{}, slog.LevelInfo)})

	err := a.Run(ctx, Window{Start: 0, End: 200, Step: 50})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sink.frames)
}

func TestRunRejectsEmptyWindow(t *testing.T) {
	a := New(twoTrips(t), &memSink{}, Options{Logger: logging.NewStructuredLogger(&bytes.Buffer{}, slog.LevelInfo)})
	assert.Error(t, a.Run(context.Background(), Window{Start: 10, End: 10, Step: 1}))
}

func TestFrameCountsLookupFailures(t *testing.T) {
	snap := networktest.Chain(t, 1000)
	snap.AddTrip(networktest.Trip(1, networktest.Stop(1, 0, 0, 1, nil), networktest.Stop(2, 100, 100, 2, nil)))
	col := metrics.NewCollector(time.Second)
	a := New(snap, &memSink{}, Options{Metrics: col, Logger: logging.NewStructuredLogger(&bytes.Buffer{}, slog.LevelDebug)})

	// Swap the route out after validation so resolution hits a missing item.
	require.NoError(t, snap.AddRoute("R", []network.RouteItemRef{{Index: 1, NodeNo: 1}}))

	f, err := a.Frame(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, f.Markers)
	assert.Equal(t, 1.0, testutil.ToFloat64(col.LookupFailures))
}

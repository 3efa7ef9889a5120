// Package animate samples a time window and writes one frame of trip
// markers per sampled time.
package animate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"journey-animator/internal/logging"
	"journey-animator/internal/marker"
	mmetrics "journey-animator/internal/metrics"
	"journey-animator/internal/network"
	"journey-animator/internal/position"
	"journey-animator/internal/publisher"
)

// Sink receives each finished frame. *marker.DirSink implements it.
type Sink interface {
	WriteFrame(f marker.Frame) error
}

type Options struct {
	Workers    int
	Publishers map[string]publisher.Publisher // keyed by sink name, for logs
	Metrics    *mmetrics.Collector
	Logger     *slog.Logger
}

type Animator struct {
	trips    []*network.Trip
	resolver *position.Resolver
	sink     Sink
	pubs     map[string]publisher.Publisher
	metrics  *mmetrics.Collector
	logger   *slog.Logger
	workers  int
	runID    string
	labelAt  orb.Point
}

// New prepares an animator over the snapshot's valid trips. Trips that fail
// validation are logged and left out.
func New(snap *network.Snapshot, sink Sink, opts Options) *Animator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trips, bad := snap.ValidTrips()
	for _, err := range bad {
		logger.Warn("skipping trip", slog.String("error", err.Error()))
	}
	if opts.Metrics != nil {
		opts.Metrics.TripsLoaded.Set(float64(len(trips)))
		opts.Metrics.InvalidTrips.Set(float64(len(bad)))
	}

	return &Animator{
		trips:    trips,
		resolver: position.NewResolver(snap),
		sink:     sink,
		pubs:     opts.Publishers,
		metrics:  opts.Metrics,
		logger:   logger,
		workers:  workers,
		runID:    uuid.NewString(),
		labelAt:  marker.LabelPoint(snap.Bound()),
	}
}

func (a *Animator) RunID() string { return a.runID }

// Trips returns the trips the animator resolves each frame.
func (a *Animator) Trips() []*network.Trip { return a.trips }

// Run writes one frame per sampled time in w. It stops early when ctx is
// cancelled or the sink fails; publish failures are only logged.
func (a *Animator) Run(ctx context.Context, w Window) error {
	n := w.Len()
	if n == 0 {
		return fmt.Errorf("empty window %d..%d step %d", w.Start, w.End, w.Step)
	}
	ctx = logging.WithLogger(ctx, a.logger)
	a.logger.Info("animation started",
		slog.String("run_id", a.runID),
		slog.Int("frames", n),
		slog.Int("trips", len(a.trips)),
		slog.Int("workers", a.workers))

	for i, t := range w.Times() {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		frame, err := a.Frame(ctx, t)
		if err != nil {
			return err
		}
		if err := a.sink.WriteFrame(frame); err != nil {
			return fmt.Errorf("frame %s: %w", frame.Label(), err)
		}
		a.publish(ctx, frame)

		elapsed := time.Since(start)
		if a.metrics != nil {
			a.metrics.Frames.Inc()
			a.metrics.Markers.Add(float64(len(frame.Markers)))
			a.metrics.FrameDuration.Observe(elapsed.Seconds())
		}
		logging.LogOperation(a.logger, "frame written",
			slog.Int("frame", i+1),
			slog.Int("of", n),
			slog.String("clock", frame.Label()),
			slog.Int("markers", len(frame.Markers)),
			slog.Duration("duration", elapsed))
	}
	return nil
}

// Frame resolves every trip at time t, in parallel, and returns the
// markers of the active ones ordered by trip number.
func (a *Animator) Frame(ctx context.Context, t int) (marker.Frame, error) {
	slots := make([]*marker.Marker, len(a.trips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, trip := range a.trips {
		if gctx.Err() != nil {
			break
		}
		i, trip := i, trip
		g.Go(func() error {
			pos, err := a.resolver.Locate(trip, float64(t))
			if err != nil {
				a.countMiss(trip, t, err)
				return nil
			}
			m := marker.New(trip, pos)
			slots[i] = &m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return marker.Frame{}, err
	}
	if err := ctx.Err(); err != nil {
		return marker.Frame{}, err
	}

	frame := marker.Frame{Time: t, LabelAt: a.labelAt}
	for _, m := range slots {
		if m != nil {
			frame.Markers = append(frame.Markers, *m)
		}
	}
	sort.SliceStable(frame.Markers, func(i, j int) bool { return frame.Markers[i].TripNo < frame.Markers[j].TripNo })
	return frame, nil
}

func (a *Animator) countMiss(trip *network.Trip, t int, err error) {
	if errors.Is(err, network.ErrLookup) {
		if a.metrics != nil {
			a.metrics.LookupFailures.Inc()
		}
		a.logger.Debug("trip lookup failed",
			slog.Int64("trip", trip.No),
			slog.Int("time", t),
			slog.String("error", err.Error()))
		return
	}
	if a.metrics != nil {
		a.metrics.Inactive.Inc()
	}
}

func (a *Animator) publish(ctx context.Context, frame marker.Frame) {
	if len(a.pubs) == 0 {
		return
	}
	msg := publisher.NewFrameMessage(a.runID, frame)
	for name, p := range a.pubs {
		if err := p.PublishFrame(ctx, msg); err != nil {
			logging.LogError(a.logger, "publish failed", err,
				slog.String("sink", name),
				slog.String("clock", frame.Label()))
		}
	}
}

package metrics

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	TripsLoaded  prometheus.Gauge
	InvalidTrips prometheus.Gauge

	Frames         prometheus.Counter
	Markers        prometheus.Counter
	Inactive       prometheus.Counter
	LookupFailures prometheus.Counter

	Published     *prometheus.CounterVec // sink label: nats|amqp
	PublishErrors *prometheus.CounterVec
	NATSConnected prometheus.Gauge

	FrameDuration   prometheus.Histogram
	PublishDuration prometheus.Histogram

	StepSeconds prometheus.Gauge
}

func NewCollector(step time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		TripsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_trips_loaded",
			Help: "Number of trips that passed validation.",
		}),
		InvalidTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_invalid_trips",
			Help: "Number of trips rejected by validation.",
		}),
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_frames_total",
			Help: "Total frames written.",
		}),
		Markers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_markers_total",
			Help: "Total markers written across all frames.",
		}),
		Inactive: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_inactive_total",
			Help: "Total trip resolutions without a position.",
		}),
		LookupFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "animator_lookup_failures_total",
			Help: "Total trip resolutions that hit a missing node, link or route item.",
		}),
		Published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animator_published_total",
			Help: "Total messages published.",
		}, []string{"sink"}),
		PublishErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "animator_publish_errors_total",
			Help: "Total publish errors.",
		}, []string{"sink"}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_frame_duration_seconds",
			Help:    "Duration to resolve and write one frame.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "animator_publish_duration_seconds",
			Help:    "Duration to marshal and publish one message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		StepSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "animator_step_seconds",
			Help: "Sampling step in seconds.",
		}),
	}

	reg.MustRegister(
		c.TripsLoaded, c.InvalidTrips,
		c.Frames, c.Markers, c.Inactive, c.LookupFailures,
		c.Published, c.PublishErrors, c.NATSConnected,
		c.FrameDuration, c.PublishDuration, c.StepSeconds,
	)
	c.StepSeconds.Set(step.Seconds())
	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics listening", slog.String("addr", addr))
	return srv
}

// SinkMetrics adapts the collector to one publisher sink.
type SinkMetrics struct {
	c    *Collector
	sink string
}

// ForSink returns publisher metrics labelled with sink. A nil collector
// yields nil.
func (c *Collector) ForSink(sink string) *SinkMetrics {
	if c == nil {
		return nil
	}
	return &SinkMetrics{c: c, sink: sink}
}

// SinkMetrics methods are no-ops on a nil receiver.
func (s *SinkMetrics) PublishedInc() {
	if s != nil {
		s.c.Published.WithLabelValues(s.sink).Inc()
	}
}

func (s *SinkMetrics) PublishErrInc() {
	if s != nil {
		s.c.PublishErrors.WithLabelValues(s.sink).Inc()
	}
}

func (s *SinkMetrics) PublishObserve(d time.Duration) {
	if s != nil {
		s.c.PublishDuration.Observe(d.Seconds())
	}
}

func (s *SinkMetrics) SetConnected(b bool) {
	if s == nil || s.sink != "nats" {
		return
	}
	if b {
		s.c.NATSConnected.Set(1)
	} else {
		s.c.NATSConnected.Set(0)
	}
}

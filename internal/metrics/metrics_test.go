package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector(5 * time.Second)
	assert.Equal(t, 5.0, testutil.ToFloat64(c.StepSeconds))

	c.Frames.Inc()
	c.Markers.Add(3)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Frames))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.Markers))
}

func TestSinkMetrics(t *testing.T) {
	c := NewCollector(time.Second)
	nats := c.ForSink("nats")
	amqp := c.ForSink("amqp")

	nats.PublishedInc()
	nats.PublishedInc()
	amqp.PublishErrInc()
	nats.SetConnected(true)
	amqp.SetConnected(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Published.WithLabelValues("nats")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PublishErrors.WithLabelValues("amqp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.NATSConnected))

	var nilCollector *Collector
	assert.Nil(t, nilCollector.ForSink("nats"))
}

func TestHandler(t *testing.T) {
	c := NewCollector(time.Second)
	c.Frames.Inc()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "animator_frames_total 1")
	assert.Contains(t, string(body), "animator_step_seconds 1")
}

func TestNilSinkMetrics(t *testing.T) {
	var s *SinkMetrics
	assert.NotPanics(t, func() {
		s.PublishedInc()
		s.PublishErrInc()
		s.PublishObserve(time.Millisecond)
		s.SetConnected(true)
	})
}

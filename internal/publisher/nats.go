package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes one message per marker on
// <prefix>.<code>.<tripNo> and a frame summary on <prefix>.frames.
type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     Metrics
	logger      *slog.Logger
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m Metrics, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("journey-animator"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if m != nil {
				m.SetConnected(false)
			}
			logger.Warn("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(true)
			}
			logger.Info("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.SetConnected(false)
			}
			logger.Info("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.SetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m, logger: logger}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type frameSummary struct {
	RunID   string `json:"runId"`
	Time    int    `json:"time"`
	Clock   string `json:"clock"`
	Markers int    `json:"markers"`
}

// PublishFrame publishes every marker of the frame, then the summary. It
// stops at the first error.
func (p *NATSPublisher) PublishFrame(ctx context.Context, msg FrameMessage) error {
	for _, m := range msg.Markers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.publish(MarkerSubject(p.prefix, m.Code, m.TripNo), m); err != nil {
			return err
		}
	}
	return p.publish(p.prefix+".frames", frameSummary{RunID: msg.RunID, Time: msg.Time, Clock: msg.Clock, Markers: len(msg.Markers)})
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		p.logger.Debug("nats publish", slog.String("subject", subject))
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.PublishErrInc()
		} else {
			p.metrics.PublishedInc()
		}
	}
	return err
}

// MarkerSubject is the subject a trip's markers are published on.
func MarkerSubject(prefix, code string, tripNo int64) string {
	return fmt.Sprintf("%s.%s.%d", prefix, subjectToken(code), tripNo)
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}

package publisher

import (
	"context"
	"time"

	"journey-animator/internal/marker"
)

// Publisher streams frames to an external consumer.
type Publisher interface {
	PublishFrame(ctx context.Context, msg FrameMessage) error
	Close()
}

// Metrics receives publish outcomes. *metrics.SinkMetrics implements it.
type Metrics interface {
	PublishedInc()
	PublishErrInc()
	PublishObserve(d time.Duration)
	SetConnected(connected bool)
}

type MarkerMessage struct {
	RunID  string   `json:"runId"`
	Time   int      `json:"time"`
	Clock  string   `json:"clock"`
	TripNo int64    `json:"tripNo"`
	Code   string   `json:"code"`
	Name   string   `json:"name"`
	LinkNo int64    `json:"linkNo"`
	From   int64    `json:"fromNode"`
	To     int64    `json:"toNode"`
	RelPos float64  `json:"relPos"`
	Volume *float64 `json:"volume"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
}

type FrameMessage struct {
	RunID   string          `json:"runId"`
	Time    int             `json:"time"`
	Clock   string          `json:"clock"`
	Markers []MarkerMessage `json:"markers"`
}

func NewFrameMessage(runID string, f marker.Frame) FrameMessage {
	msg := FrameMessage{
		RunID:   runID,
		Time:    f.Time,
		Clock:   f.Label(),
		Markers: make([]MarkerMessage, 0, len(f.Markers)),
	}
	for _, m := range f.Markers {
		msg.Markers = append(msg.Markers, MarkerMessage{
			RunID:  runID,
			Time:   f.Time,
			Clock:  msg.Clock,
			TripNo: m.TripNo,
			Code:   m.Code,
			Name:   m.Name,
			LinkNo: m.LinkNo,
			From:   int64(m.From),
			To:     int64(m.To),
			RelPos: m.RelPos,
			Volume: m.Volume,
			X:      m.Point[0],
			Y:      m.Point[1],
		})
	}
	return msg
}

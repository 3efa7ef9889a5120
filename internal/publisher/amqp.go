package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes each frame as one JSON message to a fanout
// exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	metrics  Metrics
	logger   *slog.Logger
}

func NewAMQPPublisher(url, exchange string, m Metrics, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp declare exchange %s: %w", exchange, err)
	}

	notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-notifyClose; ok && err != nil {
			logger.Warn("amqp connection closed", slog.String("error", err.Error()))
		}
	}()
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange, metrics: m, logger: logger}, nil
}

func (p *AMQPPublisher) PublishFrame(ctx context.Context, msg FrameMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	start := time.Now()
	err = p.channel.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Transient,
		MessageId:    fmt.Sprintf("%s-%d", msg.RunID, msg.Time),
		Timestamp:    time.Now(),
		Body:         body,
	})
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

func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/streadway/amqp"
)

const followQueue = "follow_events"

// AMQPPublisher publishes follow events as persistent JSON messages to a
// durable queue on a RabbitMQ broker.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

type followEvent struct {
	Type       string    `json:"type"`
	FromID     int64     `json:"from_id"`
	ToID       int64     `json:"to_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewAMQPPublisher connects to the broker and declares the follow queue.
func NewAMQPPublisher(url string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to amqp broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	if _, err := ch.QueueDeclare(followQueue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", followQueue, err)
	}

	return &AMQPPublisher{
		conn:    conn,
		channel: ch,
	}, nil
}

func (p *AMQPPublisher) PublishFollow(_ context.Context, fromID, toID int64) error {
	body, err := json.Marshal(followEvent{
		Type:       "follow",
		FromID:     fromID,
		ToID:       toID,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal follow event: %w", err)
	}

	err = p.channel.Publish("", followQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
	})
	if err != nil {
		return fmt.Errorf("publish follow event: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.conn.Close()
			return fmt.Errorf("close amqp channel: %w", err)
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close amqp connection: %w", err)
		}
	}
	return nil
}

// Package queue publishes reservation events to RabbitMQ for downstream
// consumers such as notification senders.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/yeremiapane/table-reservations/services"
)

const DefaultQueue = "reservations.events"

var ErrNoURL = errors.New("rabbitmq: no url configured")

// Publisher keeps one connection open and redials after it drops.
type Publisher struct {
	url   string
	queue string

	mu   sync.Mutex
	conn *amqp.Connection
}

func NewPublisher(url, queue string) (*Publisher, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	if queue == "" {
		queue = DefaultQueue
	}
	return &Publisher{url: url, queue: queue}, nil
}

func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.Dial(p.url)
		if err != nil {
			return nil, err
		}
		p.conn = conn
	}
	ch, err := p.conn.Channel()
	if err != nil {
		_ = p.conn.Close()
		p.conn = nil
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

func (p *Publisher) Publish(ctx context.Context, ev services.ReservationEvent) error {
	pub, err := Encode(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	return ch.PublishWithContext(ctx, "", p.queue, false, false, pub)
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// Encode builds the persistent JSON message for ev.
func Encode(ev services.ReservationEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	ts := ev.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         ev.Type,
		MessageId:    ev.UID,
		Timestamp:    ts,
		Body:         body,
	}, nil
}

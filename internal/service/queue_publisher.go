package service

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/event-ticket-bot/internal/queue"
)

// EventPublisher publishes ticket lifecycle events.  Publishing is best
// effort: callers log the error and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.TicketEvent) error
}

// NopPublisher drops every event.  It is used when EVENTS_ENABLED=false and
// in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.TicketEvent) error { return nil }

// AMQPPublisher publishes to the ticket.events queue.  It dials per call,
// which is adequate for the low event rate of manual approvals.
type AMQPPublisher struct {
	URL string
	Log *zap.Logger
}

// Publish sends ev as a persistent JSON message.  Any error is logged and
// returned so the caller can choose to ignore it.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.TicketEvent) error {
	if ev.OccurredAt == "" {
		ev.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	conn, err := amqp.DialConfig(p.URL, amqp.Config{Dial: amqp.DefaultDial(5 * time.Second)})
	if err != nil {
		p.Log.Warn("rabbitmq: dial failed", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.Log.Warn("rabbitmq: channel open failed", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.TicketQueueName, true, false, false, false, nil); err != nil {
		p.Log.Warn("rabbitmq: queue declare failed", zap.Error(err))
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.TicketQueueName, false, false, pub); err != nil {
		p.Log.Warn("rabbitmq: publish failed", zap.Error(err), zap.String("ticket_id", ev.TicketID))
		return err
	}
	return nil
}

// AsyncPublisher decouples chat handlers from broker latency: Publish only
// enqueues, and Run forwards events to Next one at a time.  Events are
// dropped (and logged) when the buffer is full.
type AsyncPublisher struct {
	Next EventPublisher
	Log  *zap.Logger
	ch   chan queue.TicketEvent
}

// NewAsyncPublisher returns an AsyncPublisher with the given buffer size.
func NewAsyncPublisher(next EventPublisher, buffer int, log *zap.Logger) *AsyncPublisher {
	return &AsyncPublisher{Next: next, Log: log, ch: make(chan queue.TicketEvent, buffer)}
}

func (p *AsyncPublisher) Publish(_ context.Context, ev queue.TicketEvent) error {
	select {
	case p.ch <- ev:
		return nil
	default:
		p.Log.Warn("ticket event dropped, publisher buffer full", zap.String("ticket_id", ev.TicketID))
		return nil
	}
}

// Run drains the buffer until ctx is cancelled.
func (p *AsyncPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.ch:
			pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = p.Next.Publish(pctx, ev) // the AMQP publisher logs its own failures
			cancel()
		}
	}
}

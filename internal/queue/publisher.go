package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/metrics"
)

// Publisher sends ChatEvents to the chat.events queue.  The connection is
// opened lazily and re-dialled after a failure.  Publish never blocks the
// caller on broker problems for longer than its context allows, and errors
// are logged rather than returned: events are advisory.
type Publisher struct {
	url string
	log *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewPublisher(url string, log *zap.Logger) *Publisher {
	return &Publisher{url: url, log: log.Named("publisher")}
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev ChatEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	metrics.ChatEvents.WithLabelValues(ev.Type).Inc()

	body, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("marshal chat event", zap.Error(err))
		return
	}
	if err := p.publish(ctx, body); err != nil {
		p.log.Warn("publish chat event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (p *Publisher) publish(ctx context.Context, body []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.ensureChannel(); err != nil {
		return err
	}
	err := p.ch.PublishWithContext(ctx,
		"",              // default exchange
		ChatEventsQueue, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		})
	if err != nil {
		p.resetLocked()
	}
	return err
}

func (p *Publisher) ensureChannel() error {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return nil
	}
	p.resetLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(ChatEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return nil
}

func (p *Publisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetLocked()
	return nil
}

// Direct delivers events to a handler in-process.  It stands in for the
// broker when no AMQP url is configured.
type Direct struct {
	Handle func(context.Context, ChatEvent) error
	Log    *zap.Logger
}

func (d Direct) Publish(ctx context.Context, ev ChatEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	metrics.ChatEvents.WithLabelValues(ev.Type).Inc()
	if d.Handle == nil {
		return
	}
	if err := d.Handle(context.WithoutCancel(ctx), ev); err != nil && d.Log != nil {
		d.Log.Warn("handle chat event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
)

// DefaultExchange is the topic exchange outward events are published to.
const DefaultExchange = "dispatch_events"

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type connection interface {
	Channel() (*amqp.Channel, error)
	Close() error
}

// dialFunc opens a fresh channel and returns it with its owning connection.
type dialFunc func() (channel, func() error, error)

// Publisher sends dispatch events to a RabbitMQ topic exchange, routing key
// is the event type.
type Publisher struct {
	exchange string
	dial     dialFunc
	logger   logx.Logger

	mu        sync.Mutex
	ch        channel
	closeConn func() error
}

// NewPublisher connects to url and declares exchange. It returns nil, nil
// when url is empty.
func NewPublisher(url, exchange string, logger logx.Logger) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil
	}
	return newPublisher(exchange, logger, func() (channel, func() error, error) {
		conn, err := amqp.DialConfig(url, amqp.Config{Heartbeat: 10 * time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		return openChannel(conn)
	})
}

func openChannel(conn connection) (channel, func() error, error) {
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, conn.Close, nil
}

func newPublisher(exchange string, logger logx.Logger, dial dialFunc) (*Publisher, error) {
	if strings.TrimSpace(exchange) == "" {
		exchange = DefaultExchange
	}
	p := &Publisher{
		exchange: exchange,
		dial:     dial,
		logger:   logx.OrNop(logger).With(logx.Component("rabbitmq"), logx.String("exchange", exchange)),
	}
	if _, err := p.channel(); err != nil {
		return nil, err
	}
	return p, nil
}

// channel returns a live channel, reconnecting when the previous one died.
func (p *Publisher) channel() (channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	if p.ch != nil {
		p.logger.Warn("rabbitmq channel closed, reconnecting")
		p.closeLocked()
	}

	ch, closeConn, err := p.dial()
	if err != nil {
		return nil, err
	}
	if err := ch.ExchangeDeclare(
		p.exchange, // name
		"topic",    // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // args
	); err != nil {
		_ = ch.Close()
		if closeConn != nil {
			_ = closeConn()
		}
		return nil, fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}

	p.ch, p.closeConn = ch, closeConn
	return ch, nil
}

// Publish sends ev as a persistent JSON message.
func (p *Publisher) Publish(ctx context.Context, ev domain.DispatchEvent) error {
	if ev.Type == "" {
		return apperr.Permanent(fmt.Errorf("event without type: %w", apperr.ErrInvalid))
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return apperr.Permanent(fmt.Errorf("encode event %s: %w", ev.ID, err))
	}

	ch, err := p.channel()
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		p.exchange,      // exchange
		string(ev.Type), // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			MessageId:    ev.ID,
			Type:         string(ev.Type),
			Timestamp:    ev.OccurredAt,
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *Publisher) closeLocked() error {
	var err error
	if p.ch != nil {
		err = p.ch.Close()
	}
	if p.closeConn != nil {
		if cerr := p.closeConn(); err == nil {
			err = cerr
		}
	}
	p.ch, p.closeConn = nil, nil
	return err
}

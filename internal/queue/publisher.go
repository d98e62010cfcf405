package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher delivers auth events. Callers treat failures as best effort.
type Publisher interface {
	Publish(ctx context.Context, ev AuthEvent) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuthEvent) error { return nil }

// ErrBufferFull is returned by AMQPPublisher.Publish when the outbound
// buffer is full and the event was dropped.
var ErrBufferFull = errors.New("queue: publish buffer full")

// Publisher defaults.
const (
	DefaultBufferSize  = 256
	DefaultDialTimeout = 3 * time.Second
)

// AMQPPublisher publishes events to RabbitMQ from a background goroutine
// over one long-lived connection. Publish only enqueues, so a slow or
// unreachable broker never blocks the caller. Run must be started for
// events to leave the process.
type AMQPPublisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	events      chan AuthEvent
	log         *zap.Logger
}

// NewAMQPPublisher returns a publisher for the broker at url with the
// default buffer size and dial timeout.
func NewAMQPPublisher(url string, log *zap.Logger) *AMQPPublisher {
	return NewAMQPPublisherSize(url, DefaultBufferSize, DefaultDialTimeout, log)
}

// NewAMQPPublisherSize is NewAMQPPublisher with an explicit buffer size and
// dial timeout. The timeout also bounds the AMQP handshake.
func NewAMQPPublisherSize(url string, size int, dialTimeout time.Duration, log *zap.Logger) *AMQPPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = DefaultBufferSize
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &AMQPPublisher{
		url:         url,
		queue:       AuthEventsQueue,
		dialTimeout: dialTimeout,
		events:      make(chan AuthEvent, size),
		log:         log,
	}
}

// Publish enqueues ev without blocking. A full buffer drops the event and
// returns ErrBufferFull.
func (p *AMQPPublisher) Publish(ctx context.Context, ev AuthEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Run drains the buffer into the auth events queue until ctx is cancelled.
// It reconnects with backoff; an event that fails to publish is dropped.
func (p *AMQPPublisher) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, ch, err := p.connect()
		if err != nil {
			p.log.Warn("rabbitmq: connect failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = p.drain(ctx, conn, ch)
		_ = ch.Close()
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p.log.Warn("rabbitmq: publisher connection lost, reconnecting", zap.Error(err))
	}
}

func (p *AMQPPublisher) connect() (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(p.dialTimeout),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("channel open: %w", err)
	}
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, fmt.Errorf("queue declare: %w", err)
	}
	return conn, ch, nil
}

func (p *AMQPPublisher) drain(ctx context.Context, conn *amqp.Connection, ch *amqp.Channel) error {
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-closed:
			if err == nil {
				return errors.New("connection closed")
			}
			return err
		case ev := <-p.events:
			msg, err := newPublishing(ev)
			if err != nil {
				p.log.Warn("rabbitmq: marshal event failed", zap.Error(err))
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, p.dialTimeout)
			err = ch.PublishWithContext(pctx, "", p.queue, false, false, msg)
			cancel()
			if err != nil {
				p.log.Warn("rabbitmq: publish failed, event dropped", zap.String("type", ev.Type), zap.Error(err))
				return err
			}
		}
	}
}

func newPublishing(ev AuthEvent) (amqp.Publishing, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         ev.Type,
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}, nil
}

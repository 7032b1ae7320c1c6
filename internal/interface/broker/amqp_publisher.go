package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/pkg/logger"
	"passenger-service/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection is the part of *amqp.Connection the publisher uses
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(receiver chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Channel is the part of *amqp.Channel the publisher uses
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dialer opens a broker connection
type Dialer func(url string) (Connection, error)

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// DialAMQP dials RabbitMQ with amqp091-go
func DialAMQP(url string) (Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// AMQPConfig configures an AMQPPublisher
type AMQPConfig struct {
	URL               string
	Exchange          string
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	QueueSize         int
}

type publishRequest struct {
	ctx    context.Context
	key    string
	msg    amqp.Publishing
	result chan error
}

// AMQPPublisher publishes envelopes to a durable topic exchange.
//
// One goroutine owns the connection and channel. Publish hands requests to it
// over a queue, so the publisher is safe for concurrent callers even though an
// amqp channel is not. When the connection drops, the owner reconnects with
// exponential backoff while queued requests wait for their callers' deadlines.
type AMQPPublisher struct {
	cfg      AMQPConfig
	dial     Dialer
	logger   logger.Logger
	metrics  *metrics.Metrics
	requests chan publishRequest
	done     chan struct{}
	stopped  chan struct{}

	startOnce sync.Once
	closeOnce sync.Once
	started   atomic.Bool
}

// NewAMQPPublisher creates a publisher. dial may be nil to use DialAMQP; m may be nil.
func NewAMQPPublisher(cfg AMQPConfig, dial Dialer, log logger.Logger, m *metrics.Metrics) *AMQPPublisher {
	if dial == nil {
		dial = DialAMQP
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	if cfg.MaxReconnectDelay < cfg.ReconnectDelay {
		cfg.MaxReconnectDelay = cfg.ReconnectDelay
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}

	return &AMQPPublisher{
		cfg:      cfg,
		dial:     dial,
		logger:   log,
		metrics:  m,
		requests: make(chan publishRequest, cfg.QueueSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start dials the broker, declares the exchange and launches the owner
// goroutine. A failed first dial is returned so startup can fail fast.
func (p *AMQPPublisher) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	p.startOnce.Do(func() {
		var conn Connection
		var ch Channel
		conn, ch, err = p.connect()
		if err != nil {
			return
		}
		p.started.Store(true)
		go p.run(conn, ch)
	})
	return err
}

func (p *AMQPPublisher) connect() (Connection, Channel, error) {
	conn, err := p.dial(p.cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("failed to declare exchange %s: %w", p.cfg.Exchange, err)
	}

	p.setConnected(true)
	p.logger.Info("Connected to RabbitMQ", "exchange", p.cfg.Exchange)
	return conn, ch, nil
}

func (p *AMQPPublisher) run(conn Connection, ch Channel) {
	defer close(p.stopped)

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-p.done:
			ch.Close()
			conn.Close()
			p.setConnected(false)
			return

		case amqpErr := <-closed:
			p.setConnected(false)
			p.logger.Warn("RabbitMQ connection lost", "error", amqpErr)
			conn, ch = p.reconnect()
			if conn == nil {
				return
			}
			closed = conn.NotifyClose(make(chan *amqp.Error, 1))

		case req := <-p.requests:
			if req.ctx.Err() != nil {
				continue
			}
			err := ch.PublishWithContext(req.ctx, p.cfg.Exchange, req.key, false, false, req.msg)
			req.result <- err
			if errors.Is(err, amqp.ErrClosed) {
				p.setConnected(false)
				ch.Close()
				conn.Close()
				conn, ch = p.reconnect()
				if conn == nil {
					return
				}
				closed = conn.NotifyClose(make(chan *amqp.Error, 1))
			}
		}
	}
}

// reconnect retries until it succeeds or the publisher is closed, in which
// case it returns nil values
func (p *AMQPPublisher) reconnect() (Connection, Channel) {
	delay := p.cfg.ReconnectDelay
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-p.done:
			return nil, nil
		case <-timer.C:
		}

		conn, ch, err := p.connect()
		if err == nil {
			if p.metrics != nil {
				p.metrics.BrokerReconnects.Inc()
			}
			return conn, ch
		}

		delay *= 2
		if delay > p.cfg.MaxReconnectDelay {
			delay = p.cfg.MaxReconnectDelay
		}
		p.logger.Warn("RabbitMQ reconnect failed", "error", err, "retryIn", delay)
		timer.Reset(delay)
	}
}

func (p *AMQPPublisher) setConnected(up bool) {
	if p.metrics == nil {
		return
	}
	if up {
		p.metrics.BrokerConnected.Set(1)
	} else {
		p.metrics.BrokerConnected.Set(0)
	}
}

// Publish sends env to the exchange with its event type as routing key
func (p *AMQPPublisher) Publish(ctx context.Context, env *entity.Envelope) error {
	select {
	case <-p.done:
		return ErrPublisherClosed
	default:
	}

	body, err := env.Encode()
	if err != nil {
		return err
	}

	req := publishRequest{
		ctx: ctx,
		key: env.EventType,
		msg: amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    env.ID,
			Type:         env.EventType,
			Timestamp:    env.Timestamp,
			Body:         body,
		},
		result: make(chan error, 1),
	}

	select {
	case p.requests <- req:
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, ctx.Err())
	case <-p.done:
		return ErrPublisherClosed
	}

	select {
	case err := <-req.result:
		if err != nil {
			return fmt.Errorf("failed to publish %s: %w", env.EventType, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, ctx.Err())
	case <-p.done:
		return ErrPublisherClosed
	}
}

// Close stops the owner goroutine and releases the connection
func (p *AMQPPublisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
	})
	if p.started.Load() {
		<-p.stopped
	}
	return nil
}

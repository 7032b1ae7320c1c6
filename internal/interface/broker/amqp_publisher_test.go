package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"passenger-service/internal/domain/entity"
	"passenger-service/pkg/logger"
	"passenger-service/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	broker *fakeBroker
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	c.broker.declared = append(c.broker.declared, name+"/"+kind)
	if !durable {
		return errors.New("exchange must be durable")
	}
	return nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.broker.mu.Lock()
	defer c.broker.mu.Unlock()
	if c.broker.publishErr != nil {
		return c.broker.publishErr
	}
	c.broker.published = append(c.broker.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error { return nil }

type fakeConnection struct {
	broker *fakeBroker
	closed chan *amqp.Error
}

func (c *fakeConnection) Channel() (Channel, error) {
	return &fakeChannel{broker: c.broker}, nil
}

func (c *fakeConnection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.broker.mu.Lock()
	c.closed = receiver
	c.broker.mu.Unlock()
	return receiver
}

func (c *fakeConnection) Close() error { return nil }

// fakeBroker hands out fake connections and records what was published
type fakeBroker struct {
	mu         sync.Mutex
	dials      int
	failDials  int
	conns      []*fakeConnection
	declared   []string
	published  []published
	publishErr error
}

func (b *fakeBroker) dial(string) (Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials++
	if b.failDials > 0 {
		b.failDials--
		return nil, errors.New("connection refused")
	}
	conn := &fakeConnection{broker: b}
	b.conns = append(b.conns, conn)
	return conn, nil
}

// drop simulates the server closing the current connection
func (b *fakeBroker) drop(t *testing.T) {
	t.Helper()
	var closed chan *amqp.Error
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		closed = b.conns[len(b.conns)-1].closed
		return closed != nil
	}, time.Second, time.Millisecond)
	closed <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "forced"}
}

func (b *fakeBroker) dialCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dials
}

func (b *fakeBroker) publishedCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func newTestPublisher(b *fakeBroker, m *metrics.Metrics) *AMQPPublisher {
	return NewAMQPPublisher(AMQPConfig{
		URL:               "amqp://test",
		Exchange:          "passenger.events",
		ReconnectDelay:    5 * time.Millisecond,
		MaxReconnectDelay: 20 * time.Millisecond,
	}, b.dial, logger.NewNopLogger(), m)
}

func testEnvelope() *entity.Envelope {
	return entity.NewEnvelope(entity.EventPassengerBoarded, 7,
		&entity.Passenger{ID: 7, Name: "Ada", Status: entity.StatusBoarded})
}

func TestAMQPPublisherStartDeclaresTopicExchange(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, []string{"passenger.events/topic"}, b.declared)
}

func TestAMQPPublisherStartFailsFast(t *testing.T) {
	b := &fakeBroker{failDials: 1}
	p := newTestPublisher(b, nil)
	assert.Error(t, p.Start(context.Background()))
	assert.NoError(t, p.Close())
}

func TestAMQPPublisherPublishesPersistentJSON(t *testing.T) {
	b := &fakeBroker{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p := newTestPublisher(b, m)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	env := testEnvelope()
	require.NoError(t, p.Publish(context.Background(), env))

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.published, 1)
	got := b.published[0]
	assert.Equal(t, "passenger.events", got.exchange)
	assert.Equal(t, entity.EventPassengerBoarded, got.key)
	assert.Equal(t, "application/json", got.msg.ContentType)
	assert.Equal(t, amqp.Persistent, got.msg.DeliveryMode)
	assert.Equal(t, env.ID, got.msg.MessageId)
	assert.Equal(t, entity.EventPassengerBoarded, got.msg.Type)
	assert.Contains(t, string(got.msg.Body), `"EventType":"PassengerBoarded"`)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BrokerConnected))
}

func TestAMQPPublisherConcurrentCallers(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	const callers = 50
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, p.Publish(context.Background(), testEnvelope()))
		}()
	}
	wg.Wait()

	assert.Equal(t, callers, b.publishedCount())
}

func TestAMQPPublisherReturnsBrokerError(t *testing.T) {
	b := &fakeBroker{publishErr: errors.New("no route")}
	p := newTestPublisher(b, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	err := p.Publish(context.Background(), testEnvelope())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrBrokerUnavailable)
}

func TestAMQPPublisherReconnectsAfterDrop(t *testing.T) {
	b := &fakeBroker{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p := newTestPublisher(b, m)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	b.mu.Lock()
	b.failDials = 2
	b.mu.Unlock()
	b.drop(t)
	require.Eventually(t, func() bool { return b.dialCount() >= 2 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Publish(ctx, testEnvelope()))

	assert.Equal(t, 4, b.dialCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BrokerReconnects))
	assert.Equal(t, 1, b.publishedCount())
}

func TestAMQPPublisherTimesOutWhileDisconnected(t *testing.T) {
	b := &fakeBroker{}
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	p := NewAMQPPublisher(AMQPConfig{
		URL:               "amqp://test",
		Exchange:          "passenger.events",
		ReconnectDelay:    time.Hour,
		MaxReconnectDelay: time.Hour,
	}, b.dial, logger.NewNopLogger(), m)
	require.NoError(t, p.Start(context.Background()))
	defer p.Close()

	b.drop(t)
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.BrokerConnected) == 0
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := p.Publish(ctx, testEnvelope())
	assert.ErrorIs(t, err, ErrBrokerUnavailable)
	assert.Zero(t, b.publishedCount())
}

func TestAMQPPublisherClose(t *testing.T) {
	b := &fakeBroker{}
	p := newTestPublisher(b, nil)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), testEnvelope())
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/submanager"
)

type fakeChannel struct {
	conn *fakeConnection
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, _, _, _ bool, _ amqp.Table) error {
	return c.conn.call(fmt.Sprintf("ExchangeDeclare %s %s durable=%t", name, kind, durable))
}

// QueueDeclare rejects a redeclare with different durability like RabbitMQ.
func (c *fakeChannel) QueueDeclare(name string, durable, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	if err := c.conn.call(fmt.Sprintf("QueueDeclare %s durable=%t", name, durable)); err != nil {
		return amqp.Queue{}, err
	}

	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	if existing, ok := c.conn.declared[name]; ok && existing != durable {
		return amqp.Queue{}, &amqp.Error{
			Code:   amqp.PreconditionFailed,
			Reason: fmt.Sprintf("PRECONDITION_FAILED - inequivalent arg 'durable' for queue '%s'", name),
		}
	}
	c.conn.declared[name] = durable
	return amqp.Queue{Name: name}, nil
}

func (c *fakeChannel) QueueInspect(name string) (amqp.Queue, error) {
	return amqp.Queue{Name: name, Messages: 3, Consumers: 1}, c.conn.call("QueueInspect " + name)
}

func (c *fakeChannel) QueueBind(name, key, exchange string, _ bool, _ amqp.Table) error {
	return c.conn.call(fmt.Sprintf("QueueBind %s %s %s", name, key, exchange))
}

func (c *fakeChannel) QueueUnbind(name, key, exchange string, _ amqp.Table) error {
	return c.conn.call(fmt.Sprintf("QueueUnbind %s %s %s", name, key, exchange))
}

func (c *fakeChannel) QueueDelete(name string, _, _, _ bool) (int, error) {
	return 0, c.conn.call("QueueDelete " + name)
}

func (c *fakeChannel) Close() error {
	c.conn.mu.Lock()
	defer c.conn.mu.Unlock()
	c.conn.closed++
	return nil
}

type fakeConnection struct {
	mu         sync.Mutex
	calls      []string
	failures   map[string]error
	channelErr error
	opened     int
	closed     int
	declared   map[string]bool // queue name -> durable
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{failures: make(map[string]error), declared: make(map[string]bool)}
}

func (c *fakeConnection) Channel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channelErr != nil {
		return nil, c.channelErr
	}
	c.opened++
	return &fakeChannel{conn: c}, nil
}

func (c *fakeConnection) Close() error { return nil }

func (c *fakeConnection) call(entry string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, entry)
	return c.failures[entry]
}

func (c *fakeConnection) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func TestNew_DeclaresCustomExchange(t *testing.T) {
	conn := newFakeConnection()

	g, err := New(conn, WithExchange("swim"))
	require.NoError(t, err)

	assert.Equal(t, "swim", g.Exchange())
	assert.Equal(t, []string{"ExchangeDeclare swim topic durable=true"}, conn.Calls())
}

func TestNew_DefaultExchangeNotDeclared(t *testing.T) {
	conn := newFakeConnection()

	g, err := New(conn)
	require.NoError(t, err)

	assert.Equal(t, DefaultExchange, g.Exchange())
	assert.Empty(t, conn.Calls())
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(nil)
	assert.Equal(t, submanager.ErrCodeConfiguration, submanager.ErrorCode(err))

	_, err = New(newFakeConnection(), WithExchange(""))
	assert.Equal(t, submanager.ErrCodeConfiguration, submanager.ErrorCode(err))
}

func TestGateway_CreateQueueForTopics(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)

	require.NoError(t, g.CreateQueueForTopics(context.Background(), "q1", []string{"rain", "wind"}, true))

	assert.Equal(t, []string{
		"QueueDeclare q1 durable=true",
		"QueueBind q1 rain amq.topic",
		"QueueBind q1 wind amq.topic",
	}, conn.Calls())
	assert.Equal(t, 1, conn.opened)
	assert.Equal(t, 1, conn.closed)
}

func TestGateway_BindAndUnbind(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, g.BindQueueToTopic(ctx, "q1", "rain", false))
	require.NoError(t, g.DeleteQueueBinding(ctx, "q1", "rain"))
	require.NoError(t, g.DeleteQueue(ctx, "q1"))

	assert.Equal(t, []string{
		"QueueInspect q1",
		"QueueBind q1 rain amq.topic",
		"QueueUnbind q1 rain amq.topic",
		"QueueDelete q1",
	}, conn.Calls())
	assert.Equal(t, conn.opened, conn.closed)
}

func TestGateway_ErrorsAreNormalized(t *testing.T) {
	conn := newFakeConnection()
	cause := &amqp.Error{Code: amqp.AccessRefused, Reason: "ACCESS_REFUSED"}
	conn.failures["QueueBind q1 wind amq.topic"] = cause
	g, err := New(conn)
	require.NoError(t, err)

	err = g.CreateQueueForTopics(context.Background(), "q1", []string{"rain", "wind"}, true)

	require.Error(t, err)
	assert.True(t, submanager.IsBroker(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bind wind")
	assert.Equal(t, 1, conn.closed)
}

func TestGateway_ChannelFailure(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)
	conn.channelErr = amqp.ErrClosed

	err = g.DeleteQueue(context.Background(), "q1")

	assert.True(t, submanager.IsBroker(err))
	assert.ErrorIs(t, err, amqp.ErrClosed)
}

func TestGateway_CanceledContext(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = g.DeleteQueue(ctx, "q1")
	assert.True(t, submanager.IsBroker(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, conn.Calls())
}

func TestGateway_GetQueue(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)
	ctx := context.Background()

	info, err := g.GetQueue(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, &submanager.QueueInfo{Name: "q1", Messages: 3, Consumers: 1}, info)

	conn.failures["QueueInspect q2"] = &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue 'q2'"}
	info, err = g.GetQueue(ctx, "q2")
	require.NoError(t, err)
	assert.Nil(t, info)

	conn.failures["QueueInspect q3"] = errors.New("connection reset")
	info, err = g.GetQueue(ctx, "q3")
	assert.True(t, submanager.IsBroker(err))
	assert.Nil(t, info)
}

func TestGateway_Ping(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)

	require.NoError(t, g.Ping(context.Background()))
	assert.Equal(t, 1, conn.opened)
	assert.Equal(t, 1, conn.closed)

	conn.channelErr = amqp.ErrClosed
	err = g.Ping(context.Background())
	assert.True(t, submanager.IsBroker(err))
}

func TestGateway_BindKeepsExistingDurability(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, g.CreateQueueForTopics(ctx, "q1", nil, false))

	// Durable changed on the record after the queue was created
	require.NoError(t, g.BindQueueToTopic(ctx, "q1", "rain", true))

	assert.Equal(t, []string{
		"QueueDeclare q1 durable=false",
		"QueueInspect q1",
		"QueueBind q1 rain amq.topic",
	}, conn.Calls())
	assert.False(t, conn.declared["q1"])
	assert.Equal(t, conn.opened, conn.closed)
}

func TestGateway_BindDeclaresMissingQueue(t *testing.T) {
	conn := newFakeConnection()
	conn.failures["QueueInspect q2"] = &amqp.Error{Code: amqp.NotFound, Reason: "NOT_FOUND - no queue 'q2'"}
	g, err := New(conn)
	require.NoError(t, err)

	require.NoError(t, g.BindQueueToTopic(context.Background(), "q2", "rain", true))

	assert.Equal(t, []string{
		"QueueInspect q2",
		"QueueDeclare q2 durable=true",
		"QueueBind q2 rain amq.topic",
	}, conn.Calls())
	assert.True(t, conn.declared["q2"])
	assert.Equal(t, 2, conn.opened)
	assert.Equal(t, 2, conn.closed)
}

func TestGateway_RedeclareMismatchIsBrokerError(t *testing.T) {
	conn := newFakeConnection()
	g, err := New(conn)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, g.CreateQueueForTopics(ctx, "q1", nil, false))
	err = g.CreateQueueForTopics(ctx, "q1", nil, true)

	assert.True(t, submanager.IsBroker(err))
	var amqpErr *amqp.Error
	require.ErrorAs(t, err, &amqpErr)
	assert.Equal(t, amqp.PreconditionFailed, amqpErr.Code)
}

package broker

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"
)

// Channel is the subset of *amqp.Channel the system uses. Consumers and
// publishers depend on this interface so tests can substitute a fake.
type Channel interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
}

// ConnectionManager owns a single AMQP connection and channel, lazily
// (re)establishing them on demand. It is constructed once at process start
// and handed to every producer and consumer that needs broker access.
// All methods are safe for concurrent use.
type ConnectionManager struct {
	url    string
	queues []string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	ch      *amqp.Channel
	chClose chan *amqp.Error
}

// NewConnectionManager creates a manager for the given AMQP endpoint.
// The named queues are declared durable on every successful connect;
// declaring an existing queue is a no-op on the broker side.
func NewConnectionManager(url string, queues []string, logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		url:    url,
		queues: queues,
		logger: logger.With(slog.String("component", "connection_manager")),
	}
}

// Connect establishes (or confirms) a live connection and declares the
// durable queues. Failure to connect is reported as an error, never as a
// process-ending condition.
func (m *ConnectionManager) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connectLocked()
}

func (m *ConnectionManager) connectLocked() error {
	if m.healthyLocked() {
		return nil
	}

	// Drop whatever half-open state is left before dialing again.
	m.closeLocked()

	m.logger.Info("connecting to broker")

	conn, err := amqp.Dial(m.url)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}

	for _, queue := range m.queues {
		_, err = ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // args
		)
		if err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return fmt.Errorf("%w: declare queue %s: %v", ErrNotConnected, queue, err)
		}
	}

	m.conn = conn
	m.ch = ch
	m.chClose = ch.NotifyClose(make(chan *amqp.Error, 1))

	m.logger.Info("broker connection and channel established")
	return nil
}

// Channel returns a usable channel, attempting one reconnect if the
// current one is stale. Returns ErrNotConnected when no channel could be
// established.
func (m *ConnectionManager) Channel() (Channel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.healthyLocked() {
		return m.ch, nil
	}

	m.logger.Warn("broker connection is closed or not established, reconnecting")
	if err := m.connectLocked(); err != nil {
		return nil, err
	}
	return m.ch, nil
}

// IsOpen reports whether both the transport connection and the channel are
// healthy.
func (m *ConnectionManager) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.healthyLocked()
}

// Close releases the channel and connection. The manager can be reused
// afterwards; the next Connect or Channel call dials again.
func (m *ConnectionManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeLocked()
	return nil
}

func (m *ConnectionManager) healthyLocked() bool {
	if m.conn == nil || m.ch == nil || m.conn.IsClosed() {
		return false
	}
	select {
	case <-m.chClose:
		// Channel-level close (e.g. a failed publish) without a
		// connection-level one.
		return false
	default:
		return true
	}
}

func (m *ConnectionManager) closeLocked() {
	if m.ch != nil {
		if err := m.ch.Close(); err != nil {
			m.logger.Debug("failed to close broker channel", "error", err)
		}
		m.ch = nil
	}
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Debug("failed to close broker connection", "error", err)
		}
		m.conn = nil
	}
	m.chClose = nil
}

// internal/adapter/eventbus/bus.go

// Package eventbus delivers session notifications to websocket subscribers,
// over NATS when configured and in process otherwise.
package eventbus

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"locale/internal/config"
	"locale/internal/domain/session"
)

// Bus publishes and subscribes to per-session notifications
type Bus interface {
	Publish(n session.Notification) error
	Subscribe(sessionID string, fn func(session.Notification)) (unsubscribe func(), err error)
	Close()
}

// Subject returns the NATS subject for a session's notifications
func Subject(topic, sessionID string, t session.NotificationType) string {
	return fmt.Sprintf("%s.%s.%s", topic, sessionID, t)
}

// NATSBus carries notifications over a NATS connection
type NATSBus struct {
	conn   *nats.Conn
	topic  string
	logger *zap.Logger
}

// Connect dials NATS with the configured reconnect policy
func Connect(cfg config.NATSConfig, logger *zap.Logger) (*NATSBus, error) {
	logger = logger.Named("nats")

	options := []nats.Option{
		nats.Name("locale"),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.ConnectTimeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	}

	nc, err := nats.Connect(cfg.URL, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to NATS: %w", err)
	}

	return NewNATSBus(nc, cfg.EventsTopic, logger), nil
}

// NewNATSBus wraps an existing connection
func NewNATSBus(nc *nats.Conn, topic string, logger *zap.Logger) *NATSBus {
	return &NATSBus{conn: nc, topic: topic, logger: logger}
}

// Publish sends n on the session's subject
func (b *NATSBus) Publish(n session.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	return b.conn.Publish(Subject(b.topic, n.SessionID, n.Type), data)
}

// Subscribe delivers every notification for sessionID to fn
func (b *NATSBus) Subscribe(sessionID string, fn func(session.Notification)) (func(), error) {
	subject := fmt.Sprintf("%s.%s.>", b.topic, sessionID)
	sub, err := b.conn.Subscribe(subject, func(msg *nats.Msg) {
		var n session.Notification
		if err := json.Unmarshal(msg.Data, &n); err != nil {
			b.logger.Warn("Dropping undecodable notification",
				zap.String("subject", msg.Subject), zap.Error(err))
			return
		}
		fn(n)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			b.logger.Debug("Unsubscribe failed", zap.String("subject", subject), zap.Error(err))
		}
	}, nil
}

// Connected reports whether the NATS connection is currently up
func (b *NATSBus) Connected() bool {
	return b.conn.IsConnected()
}

// Close drains the connection
func (b *NATSBus) Close() {
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// LocalBus fans notifications out to in-process subscribers
type LocalBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]func(session.Notification)
}

// NewLocalBus creates an empty in-process bus
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[string]map[int]func(session.Notification))}
}

// Publish calls every subscriber of the session synchronously
func (b *LocalBus) Publish(n session.Notification) error {
	b.mu.RLock()
	fns := make([]func(session.Notification), 0, len(b.subs[n.SessionID]))
	for _, fn := range b.subs[n.SessionID] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(n)
	}
	return nil
}

// Subscribe registers fn for sessionID
func (b *LocalBus) Subscribe(sessionID string, fn func(session.Notification)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]func(session.Notification))
	}
	b.subs[sessionID][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[sessionID], id)
		if len(b.subs[sessionID]) == 0 {
			delete(b.subs, sessionID)
		}
	}, nil
}

// Close drops all subscribers
func (b *LocalBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string]map[int]func(session.Notification))
}

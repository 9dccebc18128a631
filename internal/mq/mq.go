package mq

import (
	"context"
	"log/slog"
	"strings"
)

// Message attributes understood by every backend.
const (
	// AttrContentType carries the payload media type.
	AttrContentType = "content-type"
	// AttrOrderingKey groups messages that must be delivered in publish order.
	AttrOrderingKey = "ordering-key"
)

const contentTypeJSON = "application/json"

// Message is a change event as delivered by a backend.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// ContentType returns the payload media type. Messages without one are JSON.
func (m Message) ContentType() string {
	if ct := strings.TrimSpace(m.Attributes[AttrContentType]); ct != "" {
		return ct
	}
	return contentTypeJSON
}

// Handler processes a message. Return an error to have it redelivered.
type Handler func(ctx context.Context, msg Message) error

// ChangeHandler processes a decoded document change.
type ChangeHandler func(ctx context.Context, change DocumentChange) error

// Backend is implemented by the RabbitMQ and Pub/Sub clients.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

// Option configures an MQ.
type Option func(*MQ)

// WithLogger sets the logger used for dropped deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(m *MQ) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// MQ carries document change events over a backend.
type MQ struct {
	backend Backend
	logger  *slog.Logger
}

// New wraps backend.
func New(backend Backend, opts ...Option) *MQ {
	m := &MQ{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Publish sends raw data to channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe delivers raw messages from channel until ctx is done.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

// SubscribeChanges delivers decoded document changes from channel until ctx is done.
// Messages that are not JSON or do not decode are acknowledged and dropped;
// redelivering them would never succeed.
func (m *MQ) SubscribeChanges(ctx context.Context, channel string, handler ChangeHandler) error {
	return m.backend.Subscribe(ctx, channel, func(ctx context.Context, msg Message) error {
		if ct := msg.ContentType(); ct != contentTypeJSON {
			m.logger.Warn("dropping change with unsupported content type", "message_id", msg.ID, "content_type", ct)
			return nil
		}
		change, err := DecodeChange(msg)
		if err != nil {
			m.logger.Warn("dropping undecodable change", "message_id", msg.ID, "error", err)
			return nil
		}
		return handler(ctx, change)
	})
}

// Close closes the backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

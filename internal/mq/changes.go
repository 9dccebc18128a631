package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shoplist/core/config"
)

// Document change actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// ErrUnknownBackend is returned by Open for an unsupported MQ_BACKEND.
var ErrUnknownBackend = errors.New("unknown mq backend")

// DocumentChange is published after every successful document mutation.
type DocumentChange struct {
	Collection string    `json:"collection"`
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	AccountID  string    `json:"accountId,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher is the subset of MQ used by ChangeFeed.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// ChangeFeed publishes document changes on a single channel.
// Publish failures are logged and never surface to the caller.
type ChangeFeed struct {
	publisher Publisher
	channel   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewChangeFeed constructs a ChangeFeed.
func NewChangeFeed(publisher Publisher, channel string, logger *slog.Logger) *ChangeFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeFeed{
		publisher: publisher,
		channel:   channel,
		logger:    logger,
		now:       time.Now,
	}
}

// Notify publishes a change event for the document.
func (f *ChangeFeed) Notify(ctx context.Context, change DocumentChange) {
	if change.At.IsZero() {
		change.At = f.now().UTC()
	}
	data, err := json.Marshal(change)
	if err != nil {
		f.logger.Error("encode document change failed", "error", err)
		return
	}

	attrs := map[string]string{
		AttrContentType: contentTypeJSON,
		AttrOrderingKey: change.Collection + "/" + change.ID,
		"collection":    change.Collection,
		"action":        change.Action,
	}
	id, err := f.publisher.Publish(ctx, f.channel, data, attrs)
	if err != nil {
		f.logger.Warn("publish document change failed",
			"channel", f.channel,
			"collection", change.Collection,
			"id", change.ID,
			"error", err,
		)
		return
	}
	f.logger.Debug("document change published", "message_id", id, "collection", change.Collection, "action", change.Action)
}

// DecodeChange parses a message produced by ChangeFeed.
func DecodeChange(msg Message) (DocumentChange, error) {
	var change DocumentChange
	if err := json.Unmarshal(msg.Data, &change); err != nil {
		return DocumentChange{}, fmt.Errorf("decode document change: %w", err)
	}
	return change, nil
}

// Open connects to the backend named by cfg.MQ.Backend.
// An empty backend returns nil with no error.
func Open(ctx context.Context, cfg config.Config, opts ...Option) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MQ.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return New(client, opts...), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return New(client, opts...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.MQ.Backend)
	}
}

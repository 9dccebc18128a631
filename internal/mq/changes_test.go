package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shoplist/core/config"
	"github.com/shoplist/core/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
}

func (b *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.channel = channel
	b.data = data
	b.attrs = attrs
	return "msg-1", nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return handler(ctx, Message{ID: "msg-1", Data: b.data, Attributes: b.attrs})
}

func (b *recordingBackend) Close() error { return nil }

func TestChangeFeedPublishesJSON(t *testing.T) {
	backend := &recordingBackend{}
	feed := NewChangeFeed(New(backend), "document-changes", logging.Discard())
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	feed.Notify(context.Background(), DocumentChange{
		Collection: "products",
		ID:         "p1",
		Action:     ActionUpdated,
		AccountID:  "acc-1",
		At:         at,
	})

	require.Equal(t, "document-changes", backend.channel)
	assert.Equal(t, "application/json", backend.attrs[AttrContentType])
	assert.Equal(t, "products", backend.attrs["collection"])
	assert.Equal(t, "products/p1", backend.attrs[AttrOrderingKey])
	assert.JSONEq(t,
		`{"collection":"products","id":"p1","action":"updated","accountId":"acc-1","at":"2026-03-01T12:00:00Z"}`,
		string(backend.data))

	var got DocumentChange
	err := New(backend).Subscribe(context.Background(), "document-changes", func(_ context.Context, msg Message) error {
		var decodeErr error
		got, decodeErr = DecodeChange(msg)
		return decodeErr
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.True(t, got.At.Equal(at))
}

type scriptedBackend struct {
	messages []Message
	acked    int
	nacked   int
}

func (b *scriptedBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", errors.New("read only")
}

func (b *scriptedBackend) Subscribe(ctx context.Context, _ string, handler Handler) error {
	for _, msg := range b.messages {
		if err := handler(ctx, msg); err != nil {
			b.nacked++
			continue
		}
		b.acked++
	}
	return nil
}

func (b *scriptedBackend) Close() error { return nil }

func TestSubscribeChangesDropsUndecodable(t *testing.T) {
	backend := &scriptedBackend{messages: []Message{
		{ID: "1", Data: []byte(`{"collection":"lists","id":"l1","action":"created"}`), Attributes: map[string]string{AttrContentType: "application/json"}},
		{ID: "2", Data: []byte(`not json`)},
		{ID: "3", Data: []byte(`<change/>`), Attributes: map[string]string{AttrContentType: "application/xml"}},
		{ID: "4", Data: []byte(`{"collection":"products","id":"p1","action":"deleted"}`)},
		{ID: "5", Data: []byte(`{"collection":"products","id":"p2","action":"updated"}`)},
	}}

	var got []DocumentChange
	err := New(backend, WithLogger(logging.Discard())).SubscribeChanges(context.Background(), "changes",
		func(_ context.Context, change DocumentChange) error {
			if change.ID == "p2" {
				return errors.New("handler busy")
			}
			got = append(got, change)
			return nil
		})
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, "l1", got[0].ID)
	assert.Equal(t, ActionDeleted, got[1].Action)
	assert.Equal(t, 4, backend.acked)
	assert.Equal(t, 1, backend.nacked)
}

func TestMessageContentTypeDefaultsToJSON(t *testing.T) {
	assert.Equal(t, "application/json", Message{}.ContentType())
	assert.Equal(t, "text/plain", Message{Attributes: map[string]string{AttrContentType: "text/plain"}}.ContentType())
}

func TestChangeFeedStampsTime(t *testing.T) {
	backend := &recordingBackend{}
	feed := NewChangeFeed(backend, "changes", logging.Discard())
	feed.now = func() time.Time { return time.Unix(100, 0) }

	feed.Notify(context.Background(), DocumentChange{Collection: "lists", ID: "l1", Action: ActionCreated})

	change, err := DecodeChange(Message{Data: backend.data})
	require.NoError(t, err)
	assert.Equal(t, int64(100), change.At.Unix())
}

func TestChangeFeedSwallowsPublishErrors(t *testing.T) {
	backend := &recordingBackend{err: errors.New("broker down")}
	feed := NewChangeFeed(backend, "changes", logging.Discard())

	assert.NotPanics(t, func() {
		feed.Notify(context.Background(), DocumentChange{Collection: "lists", ID: "l1", Action: ActionDeleted})
	})
}

func TestDecodeChangeRejectsGarbage(t *testing.T) {
	_, err := DecodeChange(Message{Data: []byte("not json")})
	require.Error(t, err)
}

func TestOpenBackendSelection(t *testing.T) {
	ctx := context.Background()

	m, err := Open(ctx, config.Config{})
	require.NoError(t, err)
	assert.Nil(t, m)

	_, err = Open(ctx, config.Config{MQ: config.MQConfig{Backend: "kafka"}})
	require.ErrorIs(t, err, ErrUnknownBackend)

	_, err = Open(ctx, config.Config{MQ: config.MQConfig{Backend: "rabbitmq"}})
	require.EqualError(t, err, "rabbitmq url is required")

	_, err = Open(ctx, config.Config{MQ: config.MQConfig{Backend: "pubsub"}})
	require.EqualError(t, err, "pubsub project id is required")
}

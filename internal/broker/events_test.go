package broker

import (
	"context"
	"errors"
	"testing"

	"picker-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	a := NewBaseEvent(models.EventTypeItemPicked)
	b := NewBaseEvent(models.EventTypeItemPicked)

	assert.Equal(t, models.EventTypeItemPicked, a.EventType)
	assert.NotEmpty(t, a.EventID)
	assert.NotEqual(t, a.EventID, b.EventID)
	assert.False(t, a.Timestamp.IsZero())
}

func TestOrderKey(t *testing.T) {
	assert.Equal(t, "order-42", orderKey(42))
}

func TestEventHandler_Routing(t *testing.T) {
	handler := NewEventHandler()
	var got []string
	record := func(kind string) func(context.Context, []byte) error {
		return func(ctx context.Context, body []byte) error {
			got = append(got, kind+":"+string(body))
			return nil
		}
	}
	handler.On(WebhookOrder, record("order"))
	handler.On(WebhookProduct, record("product"))

	ctx := context.Background()
	require.NoError(t, handler.HandleMessage(ctx, kafka.Message{Value: []byte("a")}))
	require.NoError(t, handler.HandleMessage(ctx, kafka.Message{
		Value:   []byte("b"),
		Headers: []kafka.Header{{Key: WebhookHeader, Value: []byte(" Product ")}},
	}))
	require.NoError(t, handler.HandleMessage(ctx, kafka.Message{
		Value:   []byte("c"),
		Headers: []kafka.Header{{Key: WebhookHeader, Value: []byte("refund")}},
	}))

	assert.Equal(t, []string{"order:a", "product:b"}, got)
}

func TestEventHandler_PropagatesErrors(t *testing.T) {
	handler := NewEventHandler()
	handler.On(WebhookOrder, func(ctx context.Context, body []byte) error {
		return errors.New("boom")
	})

	err := handler.HandleMessage(context.Background(), kafka.Message{})
	assert.EqualError(t, err, "boom")
}

package worker

import (
	"context"
	"testing"

	"picker-service/internal/broker"
	"picker-service/internal/service"
	"picker-service/internal/store/storetest"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	messages []kafka.Message
	errs     []error
	closed   bool
}

func (f *fakeSource) StartConsuming(ctx context.Context, handler broker.MessageHandler) error {
	for _, msg := range f.messages {
		f.errs = append(f.errs, handler(ctx, msg))
	}
	return nil
}

func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func message(kind, body string) kafka.Message {
	msg := kafka.Message{Value: []byte(body)}
	if kind != "" {
		msg.Headers = []kafka.Header{{Key: broker.WebhookHeader, Value: []byte(kind)}}
	}
	return msg
}

func TestIngestWorker_RoutesByKind(t *testing.T) {
	st := storetest.New()
	catalog := service.NewCatalogService(st, nil)
	ingestion := service.NewIngestionService(st, catalog, nil)

	source := &fakeSource{messages: []kafka.Message{
		message(broker.WebhookProduct, `{"product": {"id": 5, "name": "tea"}}`),
		message(broker.WebhookInventory, `{"inventory": {"product_id": 5, "store_id": 1, "stock": 8}}`),
		message(broker.WebhookCustomer, `{"customer": {"id": "C-1", "name": "Ana"}}`),
		message("", `{"code": 200, "status": "SUCCESS", "data": {"order": {
			"id": 77, "referenceNumber": "R-77", "items": [{"id": 5, "name": "tea", "orderDetails": {"orderedQuantity": 1}}]}}}`),
		message("", `{"code": 500}`),
	}}

	w := NewIngestWorker(source, ingestion, catalog)
	require.NoError(t, w.Start(context.Background()))

	require.Len(t, source.errs, 5)
	for _, err := range source.errs[:4] {
		assert.NoError(t, err)
	}
	assert.Error(t, source.errs[4])

	ctx := context.Background()
	inv, err := catalog.GetInventory(ctx, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 8.0, inv.Stock)

	customer, err := st.FindCustomerByExternalID(ctx, "C-1")
	require.NoError(t, err)
	assert.NotNil(t, customer)

	order, err := st.FindOrderByExternalID(ctx, 77)
	require.NoError(t, err)
	assert.NotNil(t, order)

	require.NoError(t, w.Stop())
	assert.True(t, source.closed)
}

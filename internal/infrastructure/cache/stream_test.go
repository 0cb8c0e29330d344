package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldshop/internal/core/id"
	"goldshop/internal/infrastructure/storage/postgres"
	"goldshop/pkg/logger"
)

func TestStreamValues(t *testing.T) {
	msg := &postgres.OutboxMessage{
		ID:            id.New(),
		AggregateType: "invoice",
		AggregateID:   id.New(),
		EventType:     "invoice.finalize",
		EventKey:      "invoice/finalize/fin-1",
		Payload:       []byte(`{"number":"INV-2026-00001"}`),
		CreatedAt:     time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC),
	}

	v := StreamValues(msg)

	assert.Equal(t, msg.ID.String(), v["message_id"])
	assert.Equal(t, "invoice", v["aggregate_type"])
	assert.Equal(t, msg.AggregateID.String(), v["aggregate_id"])
	assert.Equal(t, "invoice.finalize", v["event_type"])
	assert.Equal(t, "invoice/finalize/fin-1", v["event_key"])
	assert.Equal(t, `{"number":"INV-2026-00001"}`, v["payload"])
	assert.Equal(t, "2026-03-01T10:30:00.000Z", v["created_at"])
}

func TestNewStreamPublisher_DefaultStream(t *testing.T) {
	p := NewStreamPublisher(nil, "", 0)
	assert.Equal(t, defaultStream, p.stream)
}

func TestLogHandler(t *testing.T) {
	h := NewLogHandler(logger.NewNop())
	require.NoError(t, h.Handle(context.Background(), &postgres.OutboxMessage{ID: id.New(), EventType: "purchase.create"}))
}

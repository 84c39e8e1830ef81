package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEventHandler(t *testing.T) {
	handler := NewMockEventHandler("PaymentVerified", "SettlementCreated")
	assert.Equal(t, []string{"PaymentVerified", "SettlementCreated"}, handler.EventTypes())

	first := NewTestEvent("PaymentVerified")
	require.NoError(t, handler.Handle(context.Background(), first))
	require.NoError(t, handler.Handle(context.Background(), NewTestEvent("SettlementCreated")))

	assert.Equal(t, 2, handler.HandledCount())
	assert.Same(t, first, handler.Handled()[0])
	assert.Equal(t, []string{"PaymentVerified", "SettlementCreated"}, handler.HandledTypes())

	handler.SetError(assert.AnError)
	assert.ErrorIs(t, handler.Handle(context.Background(), first), assert.AnError)

	handler.Reset()
	assert.Zero(t, handler.HandledCount())
	assert.NoError(t, handler.Handle(context.Background(), first))
}

func TestNewTestEvent(t *testing.T) {
	e := NewTestEvent("PaymentRecorded")

	assert.Equal(t, "PaymentRecorded", e.EventType())
	assert.Equal(t, "TestAggregate", e.AggregateType())
	assert.NotEqual(t, e.AggregateID(), NewTestEvent("PaymentRecorded").AggregateID())
	assert.Equal(t, 1, e.SchemaVersion())
}

func TestWaitForEventCount(t *testing.T) {
	handler := NewMockEventHandler()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = handler.Handle(context.Background(), NewTestEvent("PaymentApproved"))
	}()

	WaitForEventCount(t, handler, 1, time.Second)
	assert.Equal(t, 1, handler.HandledCount())
}

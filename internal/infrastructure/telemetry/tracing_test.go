package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestStartServiceSpan(t *testing.T) {
	rec := installRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "RevenueService", "ProcessPayment")
	assert.NotEmpty(t, TraceID(ctx))
	EndSpan(span, nil)

	ended := rec.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "RevenueService.ProcessPayment", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestEndSpan_Errors(t *testing.T) {
	rec := installRecorder(t)

	_, span := StartServiceSpan(context.Background(), "svc", "rejected")
	EndSpan(span, shared.NewValidationError("bad input"))

	_, span = StartServiceSpan(context.Background(), "svc", "store")
	EndSpan(span, shared.WrapStoreError("write", errors.New("connection reset")))

	_, span = StartServiceSpan(context.Background(), "svc", "plain")
	EndSpan(span, errors.New("boom"))

	ended := rec.Ended()
	require.Len(t, ended, 3)
	assert.NotEqual(t, codes.Error, ended[0].Status().Code, "caller errors do not fail the span")
	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, codes.Error, ended[2].Status().Code)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

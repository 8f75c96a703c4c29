package observability

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartAndEndSpanRecordsErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	_, span := StartSpan(context.Background(), tp, "workbench.Delete", attribute.String("mode", "deep"))
	EndSpan(span, errors.New("not owner"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "workbench.Delete", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("mode", "deep"))
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestStartSpanWithoutProvider(t *testing.T) {
	_, span := StartSpan(context.Background(), nil, "noop")
	assert.False(t, span.SpanContext().IsValid())
	EndSpan(span, nil)
}

func TestNewTracerProviderStdout(t *testing.T) {
	var buf bytes.Buffer
	tp, shutdown, err := NewTracerProvider(TracingConfig{Enabled: true, Output: &buf})
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), tp, "workbench.ValidateModel")
	EndSpan(span, nil)
	ShutdownWithTimeout(context.Background(), shutdown, zerolog.Nop())

	assert.Contains(t, buf.String(), "workbench.ValidateModel")
}

func TestNewTracerProviderDisabledAndUnknown(t *testing.T) {
	tp, shutdown, err := NewTracerProvider(TracingConfig{})
	require.NoError(t, err)
	require.NotNil(t, tp)
	assert.NoError(t, shutdown(context.Background()))

	_, _, err = NewTracerProvider(TracingConfig{Enabled: true, Exporter: "jaeger"})
	assert.Error(t, err)
}

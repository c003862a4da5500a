package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitTelemetry(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	// Экспортер подключается лениво, поэтому коллектор для инициализации не нужен
	shutdown, err := InitTelemetry(context.Background(), "flagsh-test", "127.0.0.1:4318", true)
	require.NoError(t, err)

	_, ok := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, ok, "Глобальный провайдер заменен на SDK")

	assert.NoError(t, shutdown(context.Background()))
}

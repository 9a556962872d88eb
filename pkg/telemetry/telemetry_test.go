package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func resetGlobalConfig() {
	globalConfig = nil
	configOnce = sync.Once{}
}

func TestInit_Disabled(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("OTEL_ENABLED", "")

	ctx := context.Background()
	shutdown, err := Init(ctx)
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, Enabled())
}

func TestGetConfig_Cached(t *testing.T) {
	resetGlobalConfig()
	t.Setenv("OTEL_SERVICE_NAME", "test-service")

	assert.Equal(t, "test-service", GetConfig().ServiceName)

	t.Setenv("OTEL_SERVICE_NAME", "changed")
	assert.Equal(t, "test-service", GetConfig().ServiceName)
}

func TestStartEndSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	_, ok := StartSpan(context.Background(), "panda.run", attribute.Int("max_k", 5))
	EndSpan(ok, nil)

	_, failed := StartSpan(context.Background(), "dataset.parse")
	EndSpan(failed, errors.New("bad line"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "panda.run", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.Int("max_k", 5))
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "bad line", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
}

func TestBuildResource(t *testing.T) {
	res, err := buildResource(context.Background(), &Config{
		ServiceName:    "panda-miner",
		ServiceVersion: "1.2.3",
		ResourceAttrs:  map[string]string{"deployment.environment": "test"},
	})
	require.NoError(t, err)

	values := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		values[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "panda-miner", values["service.name"])
	assert.Equal(t, "1.2.3", values["service.version"])
	assert.Equal(t, "test", values["deployment.environment"])
}

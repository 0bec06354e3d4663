package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitWithDisabledInstallsNoop(t *testing.T) {
	require.NoError(t, InitWith(context.Background(), Settings{}, "forumwatch", "test"))
	_, span := Tracer("").Start(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.IsRecording())
}

func TestInitWithDumpWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	ctx := context.Background()
	require.NoError(t, InitWith(ctx, Settings{Enabled: true, Dump: &buf}, "forumwatch", "test"))

	_, span := Tracer("").Start(ctx, "forum.search")
	span.End()
	require.NoError(t, Shutdown(ctx))

	assert.Contains(t, buf.String(), "forum.search")
	assert.Contains(t, buf.String(), "forumwatch")
	require.NoError(t, InitWith(ctx, Settings{}, "forumwatch", "test"))
}

func TestSettingsFromEnv(t *testing.T) {
	t.Setenv("FORUMWATCH_OTEL_ENABLED", "true")
	t.Setenv("FORUMWATCH_OTEL_STDOUT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	s := SettingsFromEnv()
	assert.True(t, s.Enabled)
	assert.Nil(t, s.Dump)
	assert.Equal(t, "localhost:4318", s.OTLPEndpoint)

	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "metrics:4318")
	t.Setenv("FORUMWATCH_OTEL_STDOUT", "true")
	s = SettingsFromEnv()
	assert.Equal(t, "metrics:4318", s.OTLPEndpoint)
	assert.NotNil(t, s.Dump)
}

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	assert.False(t, Settings{}.active())
	assert.False(t, Settings{Endpoint: "http://localhost:4318", Enabled: "FALSE"}.active())
	assert.True(t, Settings{Endpoint: "http://localhost:4318"}.active())
}

func TestSetupNoopWithoutEndpoint(t *testing.T) {
	t.Setenv("SPLEEF_OTEL_ENDPOINT", "")
	t.Setenv("SPLEEF_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "spleef-test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupDisabled(t *testing.T) {
	t.Setenv("SPLEEF_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("SPLEEF_OTEL_ENABLED", "false")

	shutdown, err := Setup(context.Background(), "spleef-test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetupProvider(t *testing.T) {
	// non-routable, nothing is exported
	t.Setenv("SPLEEF_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("SPLEEF_OTEL_ENABLED", "")

	shutdown, err := Setup(context.Background(), "spleef-test")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

package telemetry

import (
	"context"
	"testing"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupExportsToPrometheus(t *testing.T) {
	reg := promclient.NewRegistry()
	provider, err := Setup("taskflowd-test", "0.0.0", reg)
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	meter := otel.Meter("telemetry-test")
	counter, err := meter.Int64Counter("test.events")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "test_events_total" {
			found = true
		}
	}
	assert.True(t, found, "counter should surface through the prometheus registry")
}

func TestShutdownNil(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

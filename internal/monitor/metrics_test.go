package monitor

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.IngestTotal.WithLabelValues("Success").Inc()
	m.IngestTotal.WithLabelValues("Success").Inc()
	m.DroppedDeliveries.Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("Success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DroppedDeliveries))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["hub_ingest_total"])
	assert.True(t, names["hub_dropped_deliveries_total"])
}

func TestNewMetricsWithoutRegistry(t *testing.T) {
	// два экземпляра без реестра не должны конфликтовать
	assert.NotPanics(t, func() {
		NewMetrics(nil)
		NewMetrics(nil)
	})
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	switch {
	case out.Counter != nil:
		return out.Counter.GetValue()
	case out.Gauge != nil:
		return out.Gauge.GetValue()
	}
	t.Fatalf("unsupported metric type")
	return 0
}

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := value(t, slotsMerged.WithLabelValues("inserted"))
	AddMerged(3, 2)
	assert.Equal(t, before+3, value(t, slotsMerged.WithLabelValues("inserted")))

	IncSettingsMissing()
	assert.GreaterOrEqual(t, value(t, settingsMissing), 1.0)

	SetStoreSize(42)
	assert.Equal(t, 42.0, value(t, storeSize))
}

package metric

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreagemma/ga/errors"
)

func gatheredNames(t *testing.T, registry *MetricsRegistry) map[string]bool {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestNewMetricsRegistry(t *testing.T) {
	registry := NewMetricsRegistry()

	assert.NotNil(t, registry)
	assert.NotNil(t, registry.PrometheusRegistry())
	assert.NotNil(t, registry.CoreMetrics())
}

func TestMetricsRegistry_RegisterCounter(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "test_counter",
		Help: "A test counter",
	})

	require.NoError(t, registry.RegisterCounter("test-component", "test_counter", counter))
	counter.Inc()

	assert.True(t, gatheredNames(t, registry)["test_counter"])
}

func TestMetricsRegistry_RegisterGauge(t *testing.T) {
	registry := NewMetricsRegistry()

	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "test_gauge",
		Help: "A test gauge",
	})

	require.NoError(t, registry.RegisterGauge("test-component", "test_gauge", gauge))
	gauge.Set(42.0)

	assert.True(t, gatheredNames(t, registry)["test_gauge"])
}

func TestMetricsRegistry_PreventDuplicateRegistration(t *testing.T) {
	registry := NewMetricsRegistry()

	counter1 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "First"})
	counter2 := prometheus.NewCounter(prometheus.CounterOpts{Name: "duplicate_counter", Help: "First"})

	require.NoError(t, registry.RegisterCounter("component1", "duplicate_counter", counter1))

	err := registry.RegisterCounter("component1", "duplicate_counter", counter1)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "duplicate metric registration")

	err = registry.RegisterCounter("component2", "duplicate_counter", counter2)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "prometheus conflict")
}

func TestMetricsRegistry_UnregisterMetric(t *testing.T) {
	registry := NewMetricsRegistry()

	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "unregister_counter",
		Help: "A counter to unregister",
	})
	require.NoError(t, registry.RegisterCounter("test-component", "unregister_counter", counter))
	assert.True(t, gatheredNames(t, registry)["unregister_counter"])

	assert.True(t, registry.Unregister("test-component", "unregister_counter"))
	assert.False(t, gatheredNames(t, registry)["unregister_counter"])
	assert.False(t, registry.Unregister("test-component", "unregister_counter"))
}

func TestMetricsRegistry_ThreadSafety(t *testing.T) {
	registry := NewMetricsRegistry()

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			name := fmt.Sprintf("concurrent_counter_%d", id)
			counter := prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: "A concurrent counter"})
			assert.NoError(t, registry.RegisterCounter("concurrent-component", name, counter))
		}(i)
	}
	wg.Wait()

	count := 0
	for name := range gatheredNames(t, registry) {
		if strings.HasPrefix(name, "concurrent_counter_") {
			count++
		}
	}
	assert.Equal(t, numGoroutines, count)
}

func TestMetricsRegistrar_Interface(t *testing.T) {
	var registrar MetricsRegistrar = NewMetricsRegistry()

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "interface_counter_total",
		Help: "Counter registered through interface",
	}, []string{"bucket"})

	require.NoError(t, registrar.RegisterCounterVec("interface-component", "interface_counter_total", vec))
}

func TestMetricsRegistry_CoreMetricsInitialization(t *testing.T) {
	registry := NewMetricsRegistry()
	m := registry.CoreMetrics()

	// Vector metrics only appear in Gather() once a label set has a value.
	m.RecordKVOperation("local", "set", nil, 0)
	m.RecordPublished("local")
	m.RecordDelivered("local")
	m.RecordCallbackPanic("local")
	m.RecordCodecFallback("blosclz")
	m.RecordBrokerFrame("publish")
	m.RecordHealthStatus("store", true)

	names := gatheredNames(t, registry)
	for _, expected := range []string{
		"ga_kv_operations_total",
		"ga_kv_operation_duration_seconds",
		"ga_pubsub_published_total",
		"ga_pubsub_delivered_total",
		"ga_pubsub_callback_panics_total",
		"ga_codec_fallbacks_total",
		"ga_broker_connections",
		"ga_broker_frames_total",
		"ga_broker_send_failures_total",
		"ga_health_status",
		"ga_nats_connected",
		"ga_nats_reconnects_total",
	} {
		assert.True(t, names[expected], "core metric %s should be registered", expected)
	}
}

func TestMetricsRegistry_NilCoreMetrics(t *testing.T) {
	var registry *MetricsRegistry
	assert.Nil(t, registry.CoreMetrics())
}

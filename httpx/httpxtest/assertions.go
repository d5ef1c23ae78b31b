package httpxtest

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertMetricExists asserts that a metric with the given name exists in the registry.
func AssertMetricExists(t *testing.T, registry *prometheus.Registry, metricName string) {
	t.Helper()

	families, err := registry.Gather()
	require.NoError(t, err)

	for _, family := range families {
		if family.GetName() == metricName {
			return
		}
	}

	t.Errorf("metric %q not found in registry", metricName)
}

// GetMetricValue retrieves the value of a metric with the given name and labels.
// Histograms report their sample count.
func GetMetricValue(registry *prometheus.Registry, metricName string, labels map[string]string) (float64, error) {
	families, err := registry.Gather()
	if err != nil {
		return 0, errors.Wrap(err, "failed to gather metrics")
	}

	for _, family := range families {
		if family.GetName() != metricName {
			continue
		}

		for _, metric := range family.GetMetric() {
			if !matchesLabels(metric, labels) {
				continue
			}
			switch {
			case metric.Counter != nil:
				return metric.Counter.GetValue(), nil
			case metric.Gauge != nil:
				return metric.Gauge.GetValue(), nil
			case metric.Histogram != nil:
				return float64(metric.Histogram.GetSampleCount()), nil
			}
		}
	}

	return 0, errors.Newf("metric %q with labels %v not found", metricName, labels)
}

func matchesLabels(metric *dto.Metric, expectedLabels map[string]string) bool {
	if len(expectedLabels) == 0 {
		return true
	}

	metricLabels := make(map[string]string)
	for _, label := range metric.GetLabel() {
		metricLabels[label.GetName()] = label.GetValue()
	}

	for key, expectedValue := range expectedLabels {
		actualValue, exists := metricLabels[key]
		if !exists || actualValue != expectedValue {
			return false
		}
	}

	return true
}

// AssertMetricValueWithLabels asserts that a metric with specific labels has the expected value.
func AssertMetricValueWithLabels(t *testing.T, registry *prometheus.Registry, metricName string, labels map[string]string, expected float64) {
	t.Helper()

	actual, err := GetMetricValue(registry, metricName, labels)
	require.NoError(t, err)
	assert.Equal(t, expected, actual, "metric %q with labels %v", metricName, labels)
}

package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/libdeploy/internal/domain/bundle"
)

func gather(t *testing.T, m *DeployMetrics) map[string]*dto.MetricFamily {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	result := make(map[string]*dto.MetricFamily, len(families))
	for _, family := range families {
		result[family.GetName()] = family
	}

	return result
}

func counterByLabel(family *dto.MetricFamily, value string) float64 {
	for _, metric := range family.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "state" && label.GetValue() == value {
				return metric.GetCounter().GetValue()
			}
		}
	}

	return 0
}

func TestObserve(t *testing.T) {
	t.Parallel()

	m := New()
	m.SetExpectedVersion(3)
	m.ObserveCheck(bundle.StateInvalid)
	m.ObserveDeploy(bundle.StateCommitted, 1500*time.Millisecond)
	m.ObserveCheck(bundle.StateValid)

	families := gather(t, m)

	require.InDelta(t, 1, counterByLabel(families["libdeploy_checks_total"], "invalid"), 0)
	require.InDelta(t, 1, counterByLabel(families["libdeploy_checks_total"], "valid"), 0)
	require.InDelta(t, 1, counterByLabel(families["libdeploy_deploys_total"], "committed"), 0)
	require.InDelta(t, 3, families["libdeploy_bundle_expected_version"].GetMetric()[0].GetGauge().GetValue(), 0)
	require.InDelta(t, 1, families["libdeploy_bundle_valid"].GetMetric()[0].GetGauge().GetValue(), 0)

	histogram := families["libdeploy_deploy_duration_seconds"].GetMetric()[0].GetHistogram()
	require.EqualValues(t, 1, histogram.GetSampleCount())
	require.InDelta(t, 1.5, histogram.GetSampleSum(), 1e-9)
}

func TestObserveFailureClearsValid(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveCheck(bundle.StateValid)
	m.ObserveDeploy(bundle.StateFailed, time.Second)

	families := gather(t, m)
	require.InDelta(t, 0, families["libdeploy_bundle_valid"].GetMetric()[0].GetGauge().GetValue(), 0)
	require.InDelta(t, 1, counterByLabel(families["libdeploy_deploys_total"], "failed"), 0)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveCheck(bundle.StateValid)

	path := filepath.Join(t.TempDir(), "libdeploy.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	body := string(data)
	require.True(t, strings.Contains(body, `libdeploy_checks_total{state="valid"} 1`), body)
	require.Contains(t, body, "libdeploy_build_info")
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/oshokin/libdeploy/internal/domain/bundle"
	"github.com/oshokin/libdeploy/internal/version"
)

// DeployMetrics implements the deployer observer on top of a registry.
type DeployMetrics struct {
	reg            *prometheus.Registry
	checksTotal    *prometheus.CounterVec
	deploysTotal   *prometheus.CounterVec
	deployDuration prometheus.Histogram
	bundleVersion  prometheus.Gauge
	bundleValid    prometheus.Gauge
	buildInfo      *prometheus.GaugeVec
}

// New returns metrics registered on a fresh registry.
func New() *DeployMetrics {
	reg := prometheus.NewRegistry()

	m := &DeployMetrics{
		reg: reg,
		checksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libdeploy_checks_total",
			Help: "Validity checks of the library directory by resulting state",
		}, []string{"state"}),
		deploysTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libdeploy_deploys_total",
			Help: "Deployments by resulting state",
		}, []string{"state"}),
		deployDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "libdeploy_deploy_duration_seconds",
			Help:    "Time to stage, extract and commit a bundle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		bundleVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libdeploy_bundle_expected_version",
			Help: "Bundle version the binary expects",
		}),
		bundleValid: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libdeploy_bundle_valid",
			Help: "Whether the library directory was valid (1) or not (0) after the last operation",
		}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "libdeploy_build_info",
			Help: "Build metadata (value is always 1)",
		}, []string{"version", "commit", "go_version"}),
	}

	reg.MustRegister(
		m.checksTotal,
		m.deploysTotal,
		m.deployDuration,
		m.bundleVersion,
		m.bundleValid,
		m.buildInfo,
	)

	info := version.Get()
	m.buildInfo.WithLabelValues(info.Version, info.Commit, info.GoVersion).Set(1)

	return m
}

// Registry exposes the underlying registry.
func (m *DeployMetrics) Registry() *prometheus.Registry {
	return m.reg
}

// SetExpectedVersion records the bundle version of the running binary.
func (m *DeployMetrics) SetExpectedVersion(version int) {
	m.bundleVersion.Set(float64(version))
}

// ObserveCheck counts a validity check.
func (m *DeployMetrics) ObserveCheck(state bundle.State) {
	m.checksTotal.WithLabelValues(state.String()).Inc()
	m.setValid(state.Ready())
}

// ObserveDeploy counts a deployment and records its duration.
func (m *DeployMetrics) ObserveDeploy(state bundle.State, elapsed time.Duration) {
	m.deploysTotal.WithLabelValues(state.String()).Inc()
	m.deployDuration.Observe(elapsed.Seconds())
	m.setValid(state.Ready())
}

// WriteTextfile atomically writes all metrics to path in the text exposition format.
func (m *DeployMetrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

func (m *DeployMetrics) setValid(valid bool) {
	if valid {
		m.bundleValid.Set(1)
		return
	}

	m.bundleValid.Set(0)
}

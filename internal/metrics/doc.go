// Package metrics records deployment outcomes in a private Prometheus registry.
//
// The CLI is short-lived, so instead of serving /metrics the registry is
// written to a node-exporter textfile after each run.
package metrics

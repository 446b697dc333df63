// Package metrics defines the recorders that observe ledger refreshes and
// dashboard logins. Sinks such as the Prometheus, Influx and audit recorders
// are registered by name and built from configuration; several configured
// sinks are combined into a MultiRecorder automatically.
package metrics

// Package infra contains technical adapters: data sources, MQTT ingest,
// metrics sinks, the audit trail and error monitoring. These packages
// implement the interfaces defined in the core packages.
package infra

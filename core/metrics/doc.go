// Package metrics defines the events emitted around allocation runs and the
// sinks recording them. Sinks like the Prometheus and InfluxDB ones in
// infra/metrics register themselves in the factory; NewMetricsSink returns a
// MultiSink automatically when several sinks are configured.
package metrics

// Package infra holds the adapters behind the core interfaces: zerolog
// logging, the Prometheus and InfluxDB sinks, the Paho MQTT transport, Sentry
// reporting and the plan stores. Adapters depend on core packages, never the
// other way round.
package infra

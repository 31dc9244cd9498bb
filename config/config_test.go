package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "config.yaml", `allocation:
  metric: equirectangular
  unit: km
input:
  units: units.csv
  targets: targets.csv
output:
  format: geojson
  chart: fill.html
publish:
  enabled: true
  ack_timeout_seconds: 3
store:
  backend: sqlite
  path: plans.db
mqtt:
  broker: "tcp://localhost:1883"
  client_id: "cli"
  username: "user"
  password: "pass"
  ack_topic: "unit/+/ack"
metrics:
  sinks:
    - type: "nop"
logging:
  level: debug
sentry:
  environment: test
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"metric", cfg.Allocation.Metric, "equirectangular"},
		{"unit", cfg.Allocation.Unit, "km"},
		{"units", cfg.Input.Units, "units.csv"},
		{"format", cfg.Output.Format, "geojson"},
		{"chart", cfg.Output.Chart, "fill.html"},
		{"publish", cfg.Publish.Enabled, true},
		{"ack_timeout", cfg.Publish.AckTimeoutSeconds, 3},
		{"store", cfg.Store.Backend, "sqlite"},
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "cli"},
		{"command_topic default", cfg.MQTT.CommandTopic, "unit/%s/relocate"},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "nop", true},
		{"prometheus default", cfg.Metrics.PrometheusAddr, ":9100"},
		{"level", cfg.Logging.Level, "debug"},
		{"sentry", cfg.Sentry.Environment, "test"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}

	dist, err := cfg.Allocation.DistanceFunc()
	require.NoError(t, err)
	assert.NotNil(t, dist)
}

func TestLoadJSONWithDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", `{"input":{"units":"u.json"}}`))
	require.NoError(t, err)
	assert.Equal(t, "haversine", cfg.Allocation.Metric)
	assert.Equal(t, "m", cfg.Allocation.Unit)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "jsonl", cfg.Store.Backend)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REBALANCE_MQTT__BROKER", "tcp://broker:1883")
	t.Setenv("REBALANCE_ALLOCATION__UNIT", "mi")
	t.Setenv("REBALANCE_PUBLISH__ACK_TIMEOUT_SECONDS", "7")
	cfg, err := Load(writeConfig(t, "config.yaml", "allocation:\n  unit: km\n"))
	require.NoError(t, err)
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, "mi", cfg.Allocation.Unit)
	assert.Equal(t, 7, cfg.Publish.AckTimeoutSeconds)
}

func TestLoadRejectsInvalidSections(t *testing.T) {
	path := writeConfig(t, "config.yaml", `allocation:
  unit: furlong
output:
  format: xml
store:
  backend: postgres
logging:
  level: loud
publish:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	for _, section := range []string{"allocation", "output", "store", "logging", "publish"} {
		assert.Contains(t, err.Error(), section)
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	_, err := Load("config.toml")
	require.Error(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

// Package config loads the rebalance configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/rebalance/core/metrics"
	"github.com/kilianp07/rebalance/infra/mqtt"
	"github.com/kilianp07/rebalance/infra/store"
)

// EnvPrefix marks environment variables overriding file values. Nested keys
// are separated by a double underscore: REBALANCE_MQTT__BROKER sets
// mqtt.broker.
const EnvPrefix = "REBALANCE_"

type Config struct {
	Allocation AllocationConfig `json:"allocation"`
	Input      InputConfig      `json:"input"`
	Output     OutputConfig     `json:"output"`
	Publish    PublishConfig    `json:"publish"`
	Store      store.Config     `json:"store"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Metrics    metrics.Config   `json:"metrics"`
	Logging    LoggingConfig    `json:"logging"`
	Sentry     SentryConfig     `json:"sentry"`
}

// Default returns a configuration with every section defaulted. It is used
// when no configuration file exists.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(envProvider(), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envProvider() *env.Env {
	prefix := strings.ToLower(EnvPrefix)
	return env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), prefix)
		return strings.ReplaceAll(s, "__", ".")
	})
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Allocation.SetDefaults()
	c.Output.SetDefaults()
	c.Store.SetDefaults()
	c.MQTT.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c Config) Validate() error {
	var errs []error
	add := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}
	add("allocation", c.Allocation.Validate())
	add("output", c.Output.Validate())
	add("publish", c.Publish.Validate())
	add("store", c.Store.Validate())
	add("mqtt", c.MQTT.Validate())
	add("logging", c.Logging.Validate())
	if c.Publish.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, errors.New("publish: enabled but mqtt.broker is empty"))
	}
	return errors.Join(errs...)
}

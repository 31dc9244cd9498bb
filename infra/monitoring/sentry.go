// Package monitoring wires the Sentry SDK behind the core monitoring API.
package monitoring

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/rebalance/config"
	coremon "github.com/kilianp07/rebalance/core/monitoring"
)

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation. An empty DSN yields a no-op monitor.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		Debug:            cfg.Debug,
		Tags:             map[string]string{"service": "rebalance"},
	})
	if err != nil {
		return nil, err
	}
	return &sentryMonitor{}, nil
}

// Setup installs the Sentry monitor as the process-wide monitor and returns
// a function flushing pending events.
func Setup(cfg config.SentryConfig) (func(), error) {
	m, err := NewSentryMonitor(cfg)
	if err != nil {
		return func() {}, err
	}
	coremon.Init(m)
	return func() { m.Flush(2 * time.Second) }, nil
}

type sentryMonitor struct{}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTags(tags)
		sentry.CaptureException(err)
	})
}

func (s *sentryMonitor) Recover() {
	if r := recover(); r != nil {
		sentry.CurrentHub().Recover(r)
		sentry.Flush(2 * time.Second)
		panic(r)
	}
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }

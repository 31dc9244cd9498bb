package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/rebalance/config"
	coremetrics "github.com/kilianp07/rebalance/core/metrics"
	"github.com/kilianp07/rebalance/infra/logger"
	"github.com/kilianp07/rebalance/infra/metrics"
	"github.com/kilianp07/rebalance/infra/mqtt"
	"github.com/kilianp07/rebalance/infra/store"
	"github.com/kilianp07/rebalance/internal/eventbus"
)

// App owns the resources built from the configuration.
type App struct {
	*Service

	Sink  coremetrics.MetricsSink
	MQTT  *mqtt.PahoClient
	store store.PlanStore
	bus   *eventbus.Bus

	stopCollector context.CancelFunc
	collectorDone <-chan struct{}
}

// New builds an App from cfg. The MQTT client is only connected when
// connectMQTT is true, so that dry runs and history queries work offline.
func New(cfg *config.Config, connectMQTT bool) (*App, error) {
	log := logger.New("service")
	dist, err := cfg.Allocation.DistanceFunc()
	if err != nil {
		return nil, fmt.Errorf("distance: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}
	st, err := store.New(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("plan store: %w", err)
	}

	a := &App{Sink: sink, store: st, bus: eventbus.New()}
	deps := Deps{
		Distance:       dist,
		Store:          st,
		Bus:            a.bus,
		Logger:         logger.New("allocator"),
		AckTimeout:     time.Duration(cfg.Publish.AckTimeoutSeconds) * time.Second,
		SkipValidation: cfg.Allocation.SkipValidation,
	}
	if connectMQTT && cfg.MQTT.Broker != "" {
		client, err := mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		a.MQTT = client
		deps.Publisher = client
	}
	a.Service, err = NewService(deps)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopCollector = cancel
	a.collectorDone = metrics.StartEventCollector(ctx, a.bus, sink)
	log.Debugf("service ready (store=%s, mqtt=%t)", cfg.Store.Backend, a.MQTT != nil)
	return a, nil
}

// Close drains pending events into the metrics sink and releases resources.
func (a *App) Close() error {
	a.bus.Close()
	if a.collectorDone != nil {
		select {
		case <-a.collectorDone:
		case <-time.After(5 * time.Second):
		}
		a.stopCollector()
	}
	if c, ok := a.Sink.(interface{ Close() }); ok {
		c.Close()
	}
	if a.MQTT != nil {
		a.MQTT.Disconnect()
	}
	return a.store.Close()
}

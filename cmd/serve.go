package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/rebalance/app"
	"github.com/kilianp07/rebalance/infra/logger"
	"github.com/kilianp07/rebalance/infra/metrics"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Answer relocation requests received over MQTT and expose metrics",
	RunE:  serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(_ *cobra.Command, _ []string) error {
	if cfg.MQTT.Broker == "" {
		return errors.New("serve requires mqtt.broker")
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("serve")

	a, err := app.New(cfg, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Errorf("close: %v", err)
		}
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return metrics.StartPromServer(ctx, cfg.Metrics.PrometheusAddr, prometheus.DefaultGatherer)
	})
	g.Go(func() error {
		log.Infof("waiting for requests on %s", cfg.MQTT.RequestTopic)
		return a.Serve(ctx, a.MQTT)
	})
	return g.Wait()
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rebalance/app"
	"github.com/kilianp07/rebalance/core/monitoring"
	"github.com/kilianp07/rebalance/infra/logger"
	"github.com/kilianp07/rebalance/internal/tables"
	"github.com/kilianp07/rebalance/pkg/export"
)

var relocateFlags struct {
	units, targets string
	out, format    string
	chart          string
	metric, unit   string
	publish        bool
	dryRun         bool
}

var relocateCmd = &cobra.Command{
	Use:   "relocate",
	Short: "Compute a relocation plan and optionally publish the orders",
	Long: `Assigns units to targets in target order, each target taking the
nearest units still available. The plan is stored, written as JSON, CSV or
GeoJSON, and with --publish sent to the units over MQTT.`,
	RunE: relocate,
}

func init() {
	f := relocateCmd.Flags()
	f.StringVarP(&relocateFlags.units, "units", "u", "", "unit table (csv, json or yaml)")
	f.StringVarP(&relocateFlags.targets, "targets", "t", "", "target table (csv, json or yaml)")
	f.StringVarP(&relocateFlags.out, "out", "o", "", "plan output file (default stdout)")
	f.StringVarP(&relocateFlags.format, "format", "f", "", "plan format: json, csv or geojson")
	f.StringVar(&relocateFlags.chart, "chart", "", "write an HTML target fill chart")
	f.StringVar(&relocateFlags.metric, "metric", "", "distance metric: haversine or equirectangular")
	f.StringVar(&relocateFlags.unit, "distance-unit", "", "distance unit: m, km, mi, nmi or ft")
	f.BoolVar(&relocateFlags.publish, "publish", false, "publish relocation orders over MQTT")
	f.BoolVar(&relocateFlags.dryRun, "dry-run", false, "compute and store the plan without publishing")
	rootCmd.AddCommand(relocateCmd)
}

// applyRelocateFlags overrides the configuration with explicit flags.
func applyRelocateFlags(cmd *cobra.Command) error {
	set := func(name string, dst *string, v string) {
		if cmd.Flags().Changed(name) {
			*dst = v
		}
	}
	set("units", &cfg.Input.Units, relocateFlags.units)
	set("targets", &cfg.Input.Targets, relocateFlags.targets)
	set("out", &cfg.Output.Path, relocateFlags.out)
	set("format", &cfg.Output.Format, relocateFlags.format)
	set("chart", &cfg.Output.Chart, relocateFlags.chart)
	set("metric", &cfg.Allocation.Metric, relocateFlags.metric)
	set("distance-unit", &cfg.Allocation.Unit, relocateFlags.unit)
	if cmd.Flags().Changed("publish") {
		cfg.Publish.Enabled = relocateFlags.publish
	}
	if cfg.Input.Units == "" || cfg.Input.Targets == "" {
		return fmt.Errorf("both --units and --targets are required")
	}
	return cfg.Validate()
}

func relocate(cmd *cobra.Command, _ []string) error {
	if err := applyRelocateFlags(cmd); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.New("relocate")

	units, err := tables.LoadUnits(cfg.Input.Units)
	if err != nil {
		return err
	}
	targets, err := tables.LoadTargets(cfg.Input.Targets)
	if err != nil {
		return err
	}
	format, err := export.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	publish := cfg.Publish.Enabled && !relocateFlags.dryRun
	a, err := app.New(cfg, publish)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Errorf("close: %v", err)
		}
	}()

	plan, runErr := a.Relocate(ctx, units, targets, app.Options{DryRun: relocateFlags.dryRun})
	if plan.Result.Targets == nil && runErr != nil {
		monitoring.CaptureRunError(runErr, plan.RunID, "relocate")
		return runErr
	}

	if err := writeOutput(cfg.Output.Path, func(w io.Writer) error {
		return export.Write(w, format, plan.Result.Assignments, targets)
	}); err != nil {
		return fmt.Errorf("write plan: %w", err)
	}
	if cfg.Output.Chart != "" {
		if err := writeOutput(cfg.Output.Chart, func(w io.Writer) error {
			return export.WriteFillChart(w, plan.Result.Targets)
		}); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
	}
	printSummary(cmd.ErrOrStderr(), plan)
	return runErr
}

func writeOutput(path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(os.Stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func printSummary(w io.Writer, plan app.Plan) {
	s := plan.Summary
	fmt.Fprintf(w, "run %s: %d of %d units assigned to %d targets (%d requested)\n",
		plan.RunID, s.Assigned, s.Units, s.Targets, s.Requested)
	if s.Assigned > 0 {
		fmt.Fprintf(w, "distance total %.1f, mean %.1f, median %.1f, max %.1f\n",
			s.TotalDistance, s.MeanDistance, s.MedianDistance, s.MaxDistance)
	}
	for _, o := range plan.Result.Targets {
		if o.Shortfall() > 0 {
			fmt.Fprintf(w, "target %s short by %d (pool had %d)\n", o.Label, o.Shortfall(), o.PoolBefore)
		}
	}
	failed := 0
	for _, o := range plan.Orders {
		if o.Error != "" {
			failed++
		}
	}
	if len(plan.Orders) > 0 {
		fmt.Fprintf(w, "%d orders published, %d failed\n", len(plan.Orders)-failed, failed)
	}
}

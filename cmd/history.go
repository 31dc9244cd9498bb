package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/rebalance/app"
	"github.com/kilianp07/rebalance/infra/store"
)

var historyFlags struct {
	since, until string
	unit, run    string
	limit        int
	asJSON       bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored relocation plans",
	RunE:  history,
}

func init() {
	f := historyCmd.Flags()
	f.StringVar(&historyFlags.since, "since", "", "only plans at or after this RFC3339 time")
	f.StringVar(&historyFlags.until, "until", "", "only plans at or before this RFC3339 time")
	f.StringVar(&historyFlags.unit, "unit", "", "only plans involving this unit")
	f.StringVar(&historyFlags.run, "run", "", "only the plan with this run id")
	f.IntVar(&historyFlags.limit, "limit", 20, "keep the most recent plans (0 for all)")
	f.BoolVar(&historyFlags.asJSON, "json", false, "print full records as JSON lines")
	rootCmd.AddCommand(historyCmd)
}

func parseQuery() (store.PlanQuery, error) {
	q := store.PlanQuery{UnitID: historyFlags.unit, RunID: historyFlags.run, Limit: historyFlags.limit}
	var err error
	if historyFlags.since != "" {
		if q.Start, err = time.Parse(time.RFC3339, historyFlags.since); err != nil {
			return q, fmt.Errorf("--since: %w", err)
		}
	}
	if historyFlags.until != "" {
		if q.End, err = time.Parse(time.RFC3339, historyFlags.until); err != nil {
			return q, fmt.Errorf("--until: %w", err)
		}
	}
	return q, nil
}

func history(cmd *cobra.Command, _ []string) error {
	q, err := parseQuery()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	recs, err := a.History(cmd.Context(), q)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if historyFlags.asJSON {
		enc := json.NewEncoder(out)
		for _, r := range recs {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tTIME\tUNITS\tTARGETS\tASSIGNED\tSHORT\tDRY RUN")
	for _, r := range recs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%t\n",
			r.RunID, r.Timestamp.Format(time.RFC3339), r.Summary.Units, r.Summary.Targets,
			r.Summary.Assigned, r.Summary.Unsatisfied, r.DryRun)
	}
	return tw.Flush()
}

package export

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/rebalance/core/allocation"
)

// WriteFillChart renders an HTML bar chart comparing required and assigned
// units for every target, in processing order.
func WriteFillChart(w io.Writer, outcomes []allocation.TargetOutcome) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Target fill", Subtitle: "required vs assigned units"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Target"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Units"}),
	)

	labels := make([]string, len(outcomes))
	required := make([]opts.BarData, len(outcomes))
	assigned := make([]opts.BarData, len(outcomes))
	for i, o := range outcomes {
		labels[i] = o.Label
		required[i] = opts.BarData{Value: o.Required}
		assigned[i] = opts.BarData{Value: o.Assigned}
	}
	bar.SetXAxis(labels).
		AddSeries("required", required).
		AddSeries("assigned", assigned)
	return bar.Render(w)
}

package report

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/units"
)

const (
	chartWidth  = "900px"
	chartHeight = "480px"
	pieRadius   = "65%"
)

func writePlot(w io.Writer, r *Report, o Options) error {
	page := components.NewPage()
	page.PageTitle = "compactor: " + r.Root
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(physicalPie(r, o), sizeBars(r))

	return page.Render(w)
}

func physicalPie(r *Report, o Options) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "On-disk size by bucket",
			Subtitle: "total " + units.Format(r.Totals.PhysicalSize, o.Decimal),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "item"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)

	items := make([]opts.PieData, 0, len(inventory.Buckets))
	for _, b := range inventory.Buckets {
		items = append(items, opts.PieData{Name: b.String(), Value: r.Totals.Group(b).PhysicalSize})
	}

	pie.AddSeries("on disk", items, charts.WithPieChartOpts(opts.PieChart{Radius: pieRadius}))

	return pie
}

func sizeBars(r *Report) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: "Logical vs on-disk bytes"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "bytes"}),
	)

	labels := make([]string, 0, len(inventory.Buckets))
	logical := make([]opts.BarData, 0, len(inventory.Buckets))
	physical := make([]opts.BarData, 0, len(inventory.Buckets))

	for _, b := range inventory.Buckets {
		s := r.Totals.Group(b)
		labels = append(labels, b.String())
		logical = append(logical, opts.BarData{Value: s.LogicalSize})
		physical = append(physical, opts.BarData{Value: s.PhysicalSize})
	}

	bar.SetXAxis(labels).
		AddSeries("logical", logical).
		AddSeries("on disk", physical)

	return bar
}

package dashboard

import (
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kilianp07/energyledger/app"
	"github.com/kilianp07/energyledger/core/model"
)

const axisTime = "2006-01-02 15:04"

// gap is the ECharts placeholder for a missing point; lines break there.
const gap = "-"

func lineValue(q model.Quantity) opts.LineData {
	if !q.Valid {
		return opts.LineData{Value: gap}
	}
	return opts.LineData{Value: q.Value}
}

func newLine(title, yName string) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time"}),
		charts.WithYAxisOpts(opts.YAxis{Name: yName}),
	)
	return line
}

// chartPage builds the balance, net draw, consumption vs production and grid
// flow line charts of the windowed ledger plus the per-bucket bar chart.
func chartPage(snap app.Snapshot) *components.Page {
	entries := snap.View.Entries
	xs := make([]string, len(entries))
	var balance, net, consumption, production, gridIn, gridOut []opts.LineData
	for i, e := range entries {
		xs[i] = e.Timestamp.UTC().Format(axisTime)
		balance = append(balance, opts.LineData{Value: e.BalanceKW})
		net = append(net, lineValue(e.NetKW))
		consumption = append(consumption, lineValue(e.Consumption()))
		production = append(production, lineValue(e.Production()))
		gridIn = append(gridIn, lineValue(e.GridInput()))
		gridOut = append(gridOut, lineValue(e.GridOutput()))
	}

	balanceChart := newLine("Energy balance ("+snap.Window.Label()+")", "kW")
	balanceChart.SetXAxis(xs).AddSeries("Balance", balance)

	netChart := newLine("Net draw", "kW")
	netChart.SetXAxis(xs).AddSeries("Consumption - production", net)

	flowChart := newLine("Consumption vs production", "kW")
	flowChart.SetXAxis(xs).
		AddSeries("Consumption", consumption).
		AddSeries("Production", production)

	gridChart := newLine("Grid input vs output", "kW")
	gridChart.SetXAxis(xs).
		AddSeries("Grid input", gridIn).
		AddSeries("Grid output", gridOut)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: "Balance change per period"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Period"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "kW"}),
	)
	periods := make([]string, len(snap.Buckets))
	deltas := make([]opts.BarData, len(snap.Buckets))
	for i, b := range snap.Buckets {
		periods[i] = b.Start.Format(axisTime)
		deltas[i] = opts.BarData{Value: b.DeltaBalance}
	}
	bar.SetXAxis(periods).AddSeries("Balance change", deltas)

	page := components.NewPage()
	page.PageTitle = snap.Meter
	page.AddCharts(balanceChart, netChart, flowChart, gridChart, bar)
	return page
}

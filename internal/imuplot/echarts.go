package imuplot

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// PageTitle is the browser title of the rendered page.
const PageTitle = "IMU capture"

// WriteHTML renders the figures as interactive line charts on one page. The
// page loads echarts.min.js from assetsHost; empty keeps the go-echarts
// default CDN.
func WriteHTML(w io.Writer, figs []Figure, assetsHost string) error {
	page := components.NewPage()
	page.PageTitle = PageTitle
	if assetsHost != "" {
		page.AssetsHost = assetsHost
	}
	for _, fig := range figs {
		page.AddCharts(lineChart(fig, assetsHost))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render page: %w", err)
	}
	return nil
}

func lineChart(fig Figure, assetsHost string) *charts.Line {
	initOpts := opts.Initialization{PageTitle: PageTitle, Width: "100%", Height: "420px"}
	if assetsHost != "" {
		initOpts.AssetsHost = assetsHost
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: fig.Title, Subtitle: fmt.Sprintf("%d samples", fig.Points())}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
		charts.WithXAxisOpts(opts.XAxis{Name: fig.XLabel, NameLocation: "middle", NameGap: 25, SplitLine: &opts.SplitLine{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Name: fig.YLabel, SplitLine: &opts.SplitLine{Show: opts.Bool(true)}}),
	)

	x := make([]string, len(fig.X))
	for i, v := range fig.X {
		x[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	line.SetXAxis(x)

	for _, s := range fig.Series {
		data := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Name, data, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(true)}))
	}
	return line
}

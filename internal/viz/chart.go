package viz

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/ergoscan/internal/measure"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// seriesByType groups points per type as [frame, value] pairs ordered by
// frame.
func seriesByType(points []measure.MeasurementPoint) map[measure.MeasurementType][]opts.LineData {
	sorted := append([]measure.MeasurementPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].FrameID < sorted[j].FrameID })
	out := make(map[measure.MeasurementType][]opts.LineData)
	for _, p := range sorted {
		out[p.Type] = append(out[p.Type], opts.LineData{Value: []interface{}{p.FrameID, p.Value}})
	}
	return out
}

func chartTypes(raw, refined map[measure.MeasurementType][]opts.LineData) []measure.MeasurementType {
	var types []measure.MeasurementType
	for _, t := range measure.KnownTypes {
		if len(raw[t]) > 0 || len(refined[t]) > 0 {
			types = append(types, t)
		}
	}
	var extra []measure.MeasurementType
	for t := range raw {
		if !t.IsKnown() {
			extra = append(extra, t)
		}
	}
	for t := range refined {
		if _, dup := raw[t]; !dup && !t.IsKnown() {
			extra = append(extra, t)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(types, extra...)
}

// MeasurementChart builds one line chart per measurement type comparing
// the raw series with the refined one.
func MeasurementChart(raw, refined []measure.MeasurementPoint, title string) *components.Page {
	rawSeries := seriesByType(raw)
	refinedSeries := seriesByType(refined)

	page := components.NewPage()
	page.PageTitle = title
	page.SetAssetsHost(echartsAssetsPrefix)
	for _, t := range chartTypes(rawSeries, refinedSeries) {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "360px", AssetsHost: echartsAssetsPrefix}),
			charts.WithTitleOpts(opts.Title{Title: string(t), Subtitle: fmt.Sprintf("raw=%d refined=%d", len(rawSeries[t]), len(refinedSeries[t]))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Type: "value", Name: "frame", NameLocation: "middle", NameGap: 25}),
			charts.WithYAxisOpts(opts.YAxis{Type: "value", Name: "value"}),
		)
		line.AddSeries("raw", rawSeries[t], charts.WithItemStyleOpts(opts.ItemStyle{Color: "#9e9e9e"}))
		line.AddSeries("refined", refinedSeries[t],
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "#1976d2"}),
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)
		page.AddCharts(line)
	}
	return page
}

// RenderMeasurementChart writes the HTML of MeasurementChart to w.
func RenderMeasurementChart(w io.Writer, raw, refined []measure.MeasurementPoint, title string) error {
	if err := MeasurementChart(raw, refined, title).Render(w); err != nil {
		return fmt.Errorf("failed to render measurement chart: %w", err)
	}
	return nil
}

package display

import (
	"bytes"
	"fmt"

	"github.com/mzaki9/Atomus-Lumea/internal/models"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderMeasurementChart 渲染测量序列（三通道均值随时间变化）的 HTML 折线图
func RenderMeasurementChart(est *models.HeartRateEstimate, sessionID string) ([]byte, error) {
	readings := est.Measurements
	if len(readings) == 0 {
		return nil, fmt.Errorf("no measurements to chart")
	}

	start := readings[0].Timestamp
	x := make([]string, len(readings))
	red := make([]opts.LineData, len(readings))
	green := make([]opts.LineData, len(readings))
	blue := make([]opts.LineData, len(readings))
	for i, r := range readings {
		x[i] = fmt.Sprintf("%.2f", float64(r.Timestamp-start)/1000)
		red[i] = opts.LineData{Value: r.RedMean}
		green[i] = opts.LineData{Value: r.GreenMean}
		blue[i] = opts.LineData{Value: r.BlueMean}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "PPG Measurement", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("Heart rate %d BPM", est.HeartRate),
			Subtitle: fmt.Sprintf("session=%s readings=%d confidence=%.2f spo2=%.1f resp=%.1f",
				sessionID, len(readings), est.Confidence, est.SpO2, est.RespiratoryRate),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "mean"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "inside"}),
	)

	lineOpts := charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)})
	line.SetXAxis(x).
		AddSeries("green", green, lineOpts).
		AddSeries("red", red, lineOpts).
		AddSeries("blue", blue, lineOpts)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

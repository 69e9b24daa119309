package backtest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	reportColorBackground = "#060c1b"
	reportColorText       = "#eceff4"
	reportColorSubText    = "#9ca3af"
	reportColorEquity     = "#34d399"
	reportColorDrawdown   = "#f87171"

	reportChartWidthPx  = 1200
	reportChartHeightPx = 420
)

// ReportInput 是渲染资金曲线报告所需的全部数据。
type ReportInput struct {
	Title  string
	Symbol string
	Stats  Result
}

// WriteReport 将资金曲线 + 回撤曲线渲染为独立 HTML 文件。
func WriteReport(path string, input ReportInput) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return RenderReport(f, input)
}

// RenderReport 输出 HTML 到 w。资金曲线为空时报错而不是渲染空页。
func RenderReport(w io.Writer, input ReportInput) error {
	curve := input.Stats.EquityCurve
	if len(curve) == 0 {
		return fmt.Errorf("资金曲线为空，无法渲染报告")
	}
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(equityChart(input, curve), drawdownChart(curve))
	return page.Render(w)
}

func reportAxis(curve []EquityPoint) []string {
	labels := make([]string, len(curve))
	for i, p := range curve {
		labels[i] = time.UnixMilli(p.Timestamp).UTC().Format("01-02 15:04")
	}
	return labels
}

func equityChart(input ReportInput, curve []EquityPoint) *charts.Line {
	title := input.Title
	if title == "" {
		title = "Equity Curve"
	}
	subtitle := fmt.Sprintf("trades=%d winRate=%.1f%% pnl=%.2f sharpe=%.2f",
		input.Stats.TotalTrades, input.Stats.WinRate*100, input.Stats.TotalPnL, input.Stats.SharpeRatio)
	if input.Symbol != "" {
		title = strings.ToUpper(input.Symbol) + " " + title
	}

	points := make([]opts.LineData, len(curve))
	for i, p := range curve {
		points[i] = opts.LineData{Value: p.Equity}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", reportChartWidthPx),
			Height:          fmt.Sprintf("%dpx", reportChartHeightPx),
			BackgroundColor: reportColorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      subtitle,
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: reportColorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: reportColorSubText},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: reportColorSubText},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: reportColorSubText},
		}),
	)
	line.SetXAxis(reportAxis(curve)).
		AddSeries("equity", points,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: reportColorEquity, Width: 2}),
		)
	return line
}

func drawdownChart(curve []EquityPoint) *charts.Line {
	points := make([]opts.LineData, len(curve))
	peak := curve[0].Equity
	for i, p := range curve {
		if p.Equity > peak {
			peak = p.Equity
		}
		dd := 0.0
		if peak > 0 {
			dd = (peak - p.Equity) / peak * 100
		}
		points[i] = opts.LineData{Value: dd}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", reportChartWidthPx),
			Height:          fmt.Sprintf("%dpx", reportChartHeightPx),
			BackgroundColor: reportColorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:      "Drawdown %",
			Left:       "left",
			Top:        "10",
			TitleStyle: &opts.TextStyle{Color: reportColorText, FontSize: 18},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: reportColorSubText},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Color: reportColorSubText},
		}),
	)
	line.SetXAxis(reportAxis(curve)).
		AddSeries("drawdown", points,
			charts.WithLineStyleOpts(opts.LineStyle{Color: reportColorDrawdown, Width: 2}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.25)}),
		)
	return line
}

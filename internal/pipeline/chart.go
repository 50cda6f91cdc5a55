// =============================================================================
// chart.go - トレンドチャート描画
// =============================================================================
//
// 履歴テーブルを日付ごとに合計し、折れ線グラフ（PNG）として保存します。
//
// 【チャートの仕様】
//   - タイトル: "Evolution of Number of Articles Over Time"
//   - X軸: "Year"、最古の年の1月1日〜最新の年の12月1日まで毎月1本の目盛り
//          ラベルは12本に1本（1月）だけ年を表示、他は空ラベル
//   - Y軸: "Number of Articles"、0始まり、整数の目盛り（1, 2, 5 刻みの倍数）
//   - 系列: 日別合計（royal blue）、凡例付き
//
// 出力先は固定パスで、毎回上書きされる。
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrEmptyTable は描画対象のテーブルが空の場合のエラー
var ErrEmptyTable = errors.New("table has no rows to plot")

// チャートのサイズ（ピクセル）
const (
	chartWidth  = 1400
	chartHeight = 700
)

// royalBlue は matplotlib の 'royalblue'（#4169E1）
var royalBlue = drawing.Color{R: 0x41, G: 0x69, B: 0xE1, A: 0xFF}

// RenderTrendChart はテーブルからトレンドチャートを描画して path に保存する
func RenderTrendChart(rows []CountRow, path string) error {
	totals := DailyTotals(rows)
	if len(totals) == 0 {
		return ErrEmptyTable
	}

	graph := buildTrendChart(totals)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create chart directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create chart %s: %w", path, err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close chart %s: %w", path, err)
	}
	infof("Plot saved to %s (%d days, %d-%d)", path, len(totals),
		totals[0].Date.Year(), totals[len(totals)-1].Date.Year())
	return nil
}

func buildTrendChart(totals []DailyTotal) chart.Chart {
	xs := make([]time.Time, len(totals))
	ys := make([]float64, len(totals))
	maxTotal := 0
	for i, t := range totals {
		xs[i] = t.Date.Time
		ys[i] = float64(t.Total)
		if t.Total > maxTotal {
			maxTotal = t.Total
		}
	}
	yTicks := CountTicks(maxTotal)

	// X軸は最初の年の1月1日から最後の年の翌年1月1日まで（1日分だけでも範囲が0にならない）
	firstYear, lastYear := totals[0].Date.Year(), totals[len(totals)-1].Date.Year()
	ticks := YearTicks(firstYear, lastYear)
	xMax := chart.TimeToFloat64(time.Date(lastYear+1, time.January, 1, 0, 0, 0, 0, time.UTC))

	graph := chart.Chart{
		Title:  "Evolution of Number of Articles Over Time",
		Width:  chartWidth,
		Height: chartHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:  "Year",
			Range: &chart.ContinuousRange{Min: ticks[0].Value, Max: xMax},
			Ticks: ticks,
		},
		YAxis: chart.YAxis{
			Name:  "Number of Articles",
			Range: &chart.ContinuousRange{Min: 0, Max: yTicks[len(yTicks)-1].Value},
			Ticks: yTicks,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Number of Articles",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: royalBlue,
					StrokeWidth: 1.5,
				},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}
	return graph
}

// YearTicks は firstYear の1月から lastYear の12月まで毎月1本の目盛りを返す
//
// ラベルは12本ごと（各年の1月）にだけ年を表示する。
func YearTicks(firstYear, lastYear int) []chart.Tick {
	if lastYear < firstYear {
		firstYear, lastYear = lastYear, firstYear
	}
	ticks := make([]chart.Tick, 0, (lastYear-firstYear+1)*12)
	for n, m := 0, time.Date(firstYear, time.January, 1, 0, 0, 0, 0, time.UTC); m.Year() <= lastYear; n, m = n+1, m.AddDate(0, 1, 0) {
		label := ""
		if n%12 == 0 {
			label = strconv.Itoa(m.Year())
		}
		ticks = append(ticks, chart.Tick{Value: chart.TimeToFloat64(m), Label: label})
	}
	return ticks
}

// CountTicks は 0 から maxCount 以上の最小の区切りまで、整数の目盛りを返す
//
// 間隔は 1, 2, 5, 10, 20, 50, ... のうち目盛りが11本以下になる最小のもの。
func CountTicks(maxCount int) []chart.Tick {
	step, magnitude := 1, 1
	for i := 0; maxCount/step > 10; i++ {
		switch i % 3 {
		case 0:
			step = 2 * magnitude
		case 1:
			step = 5 * magnitude
		case 2:
			magnitude *= 10
			step = magnitude
		}
	}

	top := (maxCount + step - 1) / step * step
	if top == 0 {
		top = step
	}
	ticks := make([]chart.Tick, 0, top/step+1)
	for v := 0; v <= top; v += step {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: strconv.Itoa(v)})
	}
	return ticks
}

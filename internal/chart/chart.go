// Package chart renders price history with SMA overlays as PNG images.
package chart

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/quantfold/smasentinel/internal/models"
	"github.com/quantfold/smasentinel/internal/sma"
)

// displayWindow is the number of most recent points shown on the chart.
const displayWindow = 100

var overlayColors = map[int]drawing.Color{
	25:  gochart.ColorBlue,
	50:  gochart.ColorOrange,
	75:  gochart.ColorGreen,
	100: gochart.ColorRed,
}

// Renderer draws a closing-price line with one SMA overlay per period.
type Renderer struct {
	symbol  string
	periods []int
}

// NewRenderer creates a renderer for the given instrument symbol and SMA
// periods.
func NewRenderer(symbol string, periods []int) *Renderer {
	sorted := append([]int(nil), periods...)
	sort.Ints(sorted)
	return &Renderer{symbol: symbol, periods: sorted}
}

// Render produces PNG bytes for the last 100 points of the series with SMA
// overlays. The series must contain at least 100 points.
func (r *Renderer) Render(series models.PriceSeries) ([]byte, error) {
	if len(series) < displayWindow {
		return nil, fmt.Errorf("insufficient history for chart: have %d points, need %d", len(series), displayWindow)
	}

	offset := len(series) - displayWindow
	display := series[offset:]

	xs := make([]time.Time, len(display))
	ys := make([]float64, len(display))
	for i, p := range display {
		xs[i] = p.Timestamp
		ys[i] = p.Close
	}

	seriesList := []gochart.Series{
		gochart.TimeSeries{
			Name:    fmt.Sprintf("%s Close", r.symbol),
			XValues: xs,
			YValues: ys,
			Style: gochart.Style{
				StrokeColor: gochart.ColorBlack,
				StrokeWidth: 1.5,
			},
		},
	}

	for _, period := range r.periods {
		overlay := r.smaOverlay(series, offset, period)
		if overlay != nil {
			seriesList = append(seriesList, *overlay)
		}
	}

	graph := gochart.Chart{
		Title:  fmt.Sprintf("%s Price with SMA Overlays", r.symbol),
		Width:  1200,
		Height: 600,
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeDateValueFormatter,
		},
		YAxis: gochart.YAxis{
			Name: "Price ($)",
		},
		Series: seriesList,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}

// smaOverlay computes the period's SMA at every displayed point where the
// full series prefix is long enough. Returns nil when no point qualifies.
func (r *Renderer) smaOverlay(series models.PriceSeries, offset, period int) *gochart.TimeSeries {
	var xs []time.Time
	var ys []float64
	for i := offset; i < len(series); i++ {
		value, ok := sma.Calculate(series[:i+1], period)
		if !ok {
			continue
		}
		xs = append(xs, series[i].Timestamp)
		ys = append(ys, value.Value)
	}
	if len(xs) == 0 {
		return nil
	}

	color, ok := overlayColors[period]
	if !ok {
		color = gochart.ColorAlternateGray
	}
	return &gochart.TimeSeries{
		Name:    fmt.Sprintf("SMA %d", period),
		XValues: xs,
		YValues: ys,
		Style: gochart.Style{
			StrokeColor: color,
			StrokeWidth: 1.5,
		},
	}
}

package valuation

import (
	"bytes"
	"context"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/nikitakreml/invest-track-app/internal/models"
)

var sliceColors = []string{
	"2563eb", // blue-600
	"16a34a", // green-600
	"f59e0b", // amber-500
	"dc2626", // red-600
	"7c3aed", // violet-600
	"0891b2", // cyan-600
	"db2777", // pink-600
	"65a30d", // lime-600
}

// CompositionChart renders the current composition as a PNG pie chart.
func (s *Service) CompositionChart(ctx context.Context) ([]byte, error) {
	comp, err := s.Composition(ctx)
	if err != nil {
		return nil, err
	}
	return RenderCompositionChart(comp)
}

// RenderCompositionChart draws one slice per positive entry. Zero and
// negative values (unpriced holdings, overdrawn cash) cannot be drawn as
// slices and are left out.
func RenderCompositionChart(comp *models.Composition) ([]byte, error) {
	var values []chart.Value
	for i, e := range comp.Composition {
		if !e.Value.IsPositive() {
			continue
		}
		v, _ := e.Value.Float64()
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", e.Label, e.Value.StringFixed(2)),
			Value: v,
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(sliceColors[i%len(sliceColors)]),
				StrokeColor: drawing.ColorWhite,
				StrokeWidth: 1,
			},
		})
	}
	if len(values) == 0 {
		values = []chart.Value{{
			Label: "No holdings",
			Value: 1,
			Style: chart.Style{FillColor: drawing.ColorFromHex("9ca3af")},
		}}
	}

	pie := chart.PieChart{
		Title:  fmt.Sprintf("Portfolio Composition (total %s)", comp.TotalPortfolioValue.StringFixed(2)),
		Width:  600,
		Height: 600,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}

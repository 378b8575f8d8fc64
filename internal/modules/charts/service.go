package charts

import (
	"context"
	"errors"
	"fmt"
	"sort"

	charts "github.com/vicanso/go-charts/v2"
	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/modules/marketdata"
	"github.com/aristath/frontier/internal/modules/optimization"
	"github.com/aristath/frontier/pkg/formulas"
)

const (
	chartWidth  = 800
	chartHeight = 600

	// SMA overlay periods on price charts
	smaShortPeriod = 50
	smaLongPeriod  = 200
)

// Service renders PNG charts for optimization results and price history
type Service struct {
	marketData *marketdata.Service
	log        zerolog.Logger
}

// NewService creates a new chart service
func NewService(marketData *marketdata.Service, log zerolog.Logger) *Service {
	return &Service{
		marketData: marketData,
		log:        log.With().Str("service", "charts").Logger(),
	}
}

// FrontierPNG renders the efficient frontier as a line over volatility
// with the max-Sharpe portfolio marked as a second series.
func (s *Service) FrontierPNG(result *optimization.FrontierRunResult) ([]byte, error) {
	if result == nil || len(result.Points) < 2 {
		return nil, errors.New("not enough frontier points to render")
	}

	xLabels := make([]string, len(result.Points))
	frontierVals := make([]float64, len(result.Points))
	markerVals := make([]float64, len(result.Points))

	// The marker series is null everywhere except the frontier point
	// closest to the tangency portfolio's volatility.
	markerIdx := 0
	for i, p := range result.Points {
		xLabels[i] = fmt.Sprintf("%.3f", p.Volatility)
		frontierVals[i] = p.Return
		markerVals[i] = charts.GetNullValue()
		if absDiff(p.Volatility, result.MaxSharpePoint.Volatility) <
			absDiff(result.Points[markerIdx].Volatility, result.MaxSharpePoint.Volatility) {
			markerIdx = i
		}
	}
	markerVals[markerIdx] = result.MaxSharpePoint.Return

	names := []string{"Efficient frontier", "Max Sharpe"}
	seriesList := charts.NewSeriesListDataFromValues([][]float64{frontierVals, markerVals}, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc("Efficient Frontier", "annualized return vs volatility"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render frontier chart: %w", err)
	}
	return painter.Bytes()
}

// WeightsPNG renders a weight map as a pie chart, largest slice first
func (s *Service) WeightsPNG(weights map[string]float64, title string) ([]byte, error) {
	type slice struct {
		symbol string
		weight float64
	}
	slices := make([]slice, 0, len(weights))
	for sym, w := range weights {
		if w > 0 {
			slices = append(slices, slice{symbol: sym, weight: w})
		}
	}
	if len(slices) == 0 {
		return nil, errors.New("no positive weights to render")
	}
	sort.Slice(slices, func(i, j int) bool {
		if slices[i].weight != slices[j].weight {
			return slices[i].weight > slices[j].weight
		}
		return slices[i].symbol < slices[j].symbol
	})

	values := make([]float64, len(slices))
	labels := make([]string, len(slices))
	for i, sl := range slices {
		values[i] = sl.weight
		labels[i] = fmt.Sprintf("%s (%.1f%%)", sl.symbol, sl.weight*100)
	}

	if title == "" {
		title = "Portfolio Weights"
	}

	painter, err := charts.PieRender(
		values,
		charts.TitleTextOptionFunc(title),
		charts.LegendOptionFunc(charts.LegendOption{
			Data: labels,
			Top:  charts.PositionTop,
		}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render weights chart: %w", err)
	}
	return painter.Bytes()
}

// PricePNG renders a symbol's close history with SMA(50) and SMA(200)
// overlays when enough history exists
func (s *Service) PricePNG(ctx context.Context, symbol, dateRange string) ([]byte, error) {
	points, err := s.marketData.GetChartPoints(ctx, symbol, dateRange)
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("not enough price points for %s", symbol)
	}

	xLabels := make([]string, len(points))
	closes := make([]float64, len(points))
	for i, p := range points {
		xLabels[i] = p.Time
		closes[i] = p.Value
	}

	values := [][]float64{closes}
	names := []string{symbol}
	for _, period := range []int{smaShortPeriod, smaLongPeriod} {
		sma := formulas.SimpleMovingAverage(closes, period)
		if sma == nil {
			continue
		}
		overlay := make([]float64, len(sma))
		copy(overlay, sma)
		// Hide the warm-up zeros instead of plotting them
		for i := 0; i < period-1 && i < len(overlay); i++ {
			overlay[i] = charts.GetNullValue()
		}
		values = append(values, overlay)
		names = append(names, fmt.Sprintf("SMA %d", period))
	}

	seriesList := charts.NewSeriesListDataFromValues(values, charts.ChartTypeLine)
	for i := range seriesList {
		seriesList[i].Name = names[i]
	}

	painter, err := charts.Render(charts.ChartOption{SeriesList: seriesList},
		charts.TitleTextOptionFunc(symbol+" • daily close"),
		charts.XAxisOptionFunc(charts.XAxisOption{Data: xLabels, BoundaryGap: charts.FalseFlag(), SplitNumber: 10}),
		charts.LegendOptionFunc(charts.LegendOption{Data: names, Top: charts.PositionTop}),
		charts.ThemeOptionFunc(charts.ThemeLight),
		charts.WidthOptionFunc(chartWidth),
		charts.HeightOptionFunc(chartHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to render price chart: %w", err)
	}
	return painter.Bytes()
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

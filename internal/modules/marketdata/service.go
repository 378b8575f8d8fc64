package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/domain"
)

const (
	// MinAlignedRows is the observation floor below which estimation
	// cannot produce a usable covariance matrix.
	MinAlignedRows = 30

	// fetchRange is what we pull from the upstream API when the cache
	// is cold or stale; generous so date-bounded requests hit the cache.
	fetchRange = "10y"

	// staleAfter is how old the newest cached row may be before a
	// session triggers a refresh.
	staleAfter = 3 * 24 * time.Hour
)

// PriceFetcher fetches historical prices from an upstream source
type PriceFetcher interface {
	GetHistoricalPrices(ctx context.Context, symbol, dateRange string) ([]yahoo.HistoricalPrice, error)
}

// Service assembles aligned price tables from the upstream API and the
// local cache
type Service struct {
	fetcher PriceFetcher
	repo    *Repository
	log     zerolog.Logger
}

// NewService creates a new market data service
func NewService(fetcher PriceFetcher, repo *Repository, log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		repo:    repo,
		log:     log.With().Str("service", "marketdata").Logger(),
	}
}

// GetPriceTable returns an aligned price table for the symbols over
// [from, to] (YYYY-MM-DD, empty bounds open-ended). Each symbol is
// fetched or served from cache; dates missing a close for any symbol
// are dropped. Fails when fewer than MinAlignedRows rows survive.
func (s *Service) GetPriceTable(ctx context.Context, symbols []string, from, to string) (*domain.PriceTable, error) {
	if len(symbols) < 2 {
		return nil, fmt.Errorf("need at least 2 symbols, got %d", len(symbols))
	}

	series := make(map[string]map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if err := s.ensureHistory(ctx, symbol); err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		records, err := s.repo.GetPrices(symbol, from, to)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		bySymbol := make(map[string]float64, len(records))
		for _, rec := range records {
			if rec.Close > 0 {
				bySymbol[rec.Date] = rec.Close
			}
		}
		series[symbol] = bySymbol
	}

	table := alignSeries(symbols, series)
	if table.NumRows() < MinAlignedRows {
		return nil, &InsufficientHistoryError{Rows: table.NumRows(), Required: MinAlignedRows}
	}

	s.log.Info().
		Int("symbols", len(symbols)).
		Int("rows", table.NumRows()).
		Str("from", table.Dates[0]).
		Str("to", table.Dates[len(table.Dates)-1]).
		Msg("Assembled price table")

	return table, nil
}

// LatestPrices returns the most recent cached close per symbol
func (s *Service) LatestPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))
	for _, symbol := range symbols {
		if err := s.ensureHistory(ctx, symbol); err != nil {
			return nil, fmt.Errorf("%s: %w", symbol, err)
		}
		close, err := s.repo.LatestClose(symbol)
		if err != nil {
			return nil, err
		}
		prices[symbol] = close
	}
	return prices, nil
}

// GetChartPoints returns cached closes as chart points for a range
// string such as "1y".
func (s *Service) GetChartPoints(ctx context.Context, symbol, dateRange string) ([]domain.PricePoint, error) {
	if err := s.ensureHistory(ctx, symbol); err != nil {
		return nil, err
	}

	records, err := s.repo.GetPrices(symbol, parseDateRange(dateRange), "")
	if err != nil {
		return nil, err
	}

	points := make([]domain.PricePoint, 0, len(records))
	for _, rec := range records {
		points = append(points, domain.PricePoint{Time: rec.Date, Value: rec.Close})
	}
	return points, nil
}

// RefreshAll re-fetches history for every cached symbol
func (s *Service) RefreshAll(ctx context.Context) error {
	symbols, err := s.repo.Symbols()
	if err != nil {
		return err
	}

	var failed int
	for _, symbol := range symbols {
		if err := s.fetchAndStore(ctx, symbol); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Refresh failed")
			failed++
		}
	}

	s.log.Info().
		Int("symbols", len(symbols)).
		Int("failed", failed).
		Msg("Price refresh completed")

	if failed == len(symbols) && len(symbols) > 0 {
		return fmt.Errorf("refresh failed for all %d symbols", len(symbols))
	}
	return nil
}

// ensureHistory fetches a symbol's history when the cache is cold or
// its newest row is stale
func (s *Service) ensureHistory(ctx context.Context, symbol string) error {
	latest, err := s.repo.LatestDate(symbol)
	if err != nil {
		return err
	}
	if latest != "" {
		if d, err := time.Parse("2006-01-02", latest); err == nil && time.Since(d) < staleAfter {
			return nil
		}
	}
	return s.fetchAndStore(ctx, symbol)
}

// fetchAndStore pulls upstream history and upserts it into the cache
func (s *Service) fetchAndStore(ctx context.Context, symbol string) error {
	prices, err := s.fetcher.GetHistoricalPrices(ctx, symbol, fetchRange)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}
	if len(prices) == 0 {
		return fmt.Errorf("no price data returned for %s", symbol)
	}

	records := make([]PriceRecord, 0, len(prices))
	for _, p := range prices {
		close := p.AdjClose
		if close <= 0 {
			close = p.Close
		}
		if close <= 0 {
			continue
		}
		records = append(records, PriceRecord{
			Symbol: symbol,
			Date:   p.Date.Format("2006-01-02"),
			Close:  close,
		})
	}

	return s.repo.UpsertPrices(symbol, records)
}

// alignSeries intersects the per-symbol date sets and builds an
// ascending table; a date missing for any symbol is dropped entirely.
func alignSeries(symbols []string, series map[string]map[string]float64) *domain.PriceTable {
	var dates []string
	for date := range series[symbols[0]] {
		onAll := true
		for _, symbol := range symbols[1:] {
			if _, ok := series[symbol][date]; !ok {
				onAll = false
				break
			}
		}
		if onAll {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)

	prices := make(map[string][]float64, len(symbols))
	for _, symbol := range symbols {
		col := make([]float64, len(dates))
		for i, date := range dates {
			col[i] = series[symbol][date]
		}
		prices[symbol] = col
	}

	return &domain.PriceTable{Dates: dates, Prices: prices}
}

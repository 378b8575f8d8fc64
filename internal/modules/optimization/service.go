package optimization

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/modules/marketdata"
)

const moduleName = "optimization"

// Service orchestrates a full optimization session: price table
// assembly, estimation, allocation, and persistence, with progress
// published on the event bus.
type Service struct {
	marketData *marketdata.Service
	engine     *Engine
	runs       *RunRepository
	bus        *events.Bus
	log        zerolog.Logger

	// Defaults applied when a request leaves them unset
	riskFreeRate float64
	riskAversion float64
}

// ServiceConfig holds construction parameters for the service
type ServiceConfig struct {
	MarketData   *marketdata.Service
	Runs         *RunRepository
	Bus          *events.Bus
	RiskFreeRate float64
	RiskAversion float64
	Log          zerolog.Logger
}

// NewService creates a new optimization service
func NewService(cfg ServiceConfig) *Service {
	if cfg.RiskFreeRate == 0 {
		cfg.RiskFreeRate = DefaultRiskFreeRate
	}
	if cfg.RiskAversion == 0 {
		cfg.RiskAversion = DefaultRiskAversion
	}
	return &Service{
		marketData:   cfg.MarketData,
		engine:       NewEngine(),
		runs:         cfg.Runs,
		bus:          cfg.Bus,
		riskFreeRate: cfg.RiskFreeRate,
		riskAversion: cfg.RiskAversion,
		log:          cfg.Log.With().Str("service", "optimization").Logger(),
	}
}

// Engine exposes the underlying allocation engine, used by callers that
// already hold a Session.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Runs exposes the run repository
func (s *Service) Runs() *RunRepository {
	return s.runs
}

// Optimize runs a single allocation strategy end to end
func (s *Service) Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error) {
	strategy, err := ParseStrategy(req.Strategy)
	if err != nil {
		return nil, &InvalidParameterError{Param: "strategy", Reason: err.Error()}
	}

	symbols, err := normalizeSymbols(req.Symbols)
	if err != nil {
		return nil, err
	}

	riskFree := s.riskFreeRate
	if req.RiskFreeRate != nil {
		riskFree = *req.RiskFreeRate
	}
	riskAversion := s.riskAversion
	if req.RiskAversion != nil {
		riskAversion = *req.RiskAversion
	}

	s.log.Info().
		Strs("symbols", symbols).
		Str("strategy", string(strategy)).
		Float64("risk_free_rate", riskFree).
		Msg("Starting optimization")
	s.bus.Emit(events.RunStarted, moduleName, map[string]interface{}{
		"kind":     string(domain.RunKindOptimize),
		"strategy": string(strategy),
		"symbols":  symbols,
	})

	session, table, err := s.prepareSession(ctx, symbols, req.Start, req.End, riskFree)
	if err != nil {
		s.bus.EmitError(moduleName, err, map[string]interface{}{"strategy": string(strategy)})
		return nil, err
	}

	var alloc *Allocation
	switch strategy {
	case StrategyMinVolatility:
		alloc, err = s.engine.MinVolatility(session)
	case StrategyMaxSharpe:
		alloc, err = s.engine.MaxSharpe(session)
	case StrategyMaxUtility:
		alloc, err = s.engine.MaxUtility(session, riskAversion)
	case StrategyTargetReturn:
		if req.TargetReturn == nil {
			err = &InvalidParameterError{
				Param:  "target_return",
				Reason: "required for the target_return strategy",
			}
		} else {
			alloc, err = s.engine.TargetReturn(session, *req.TargetReturn)
		}
	}
	if err != nil {
		s.log.Error().Err(err).Str("strategy", string(strategy)).Msg("Allocation failed")
		s.bus.EmitError(moduleName, err, map[string]interface{}{"strategy": string(strategy)})
		return nil, err
	}

	result := &OptimizeResult{
		Strategy:     strategy,
		Symbols:      session.Symbols,
		Weights:      alloc.Weights,
		Performance:  alloc.Performance,
		RiskFreeRate: riskFree,
		Observations: table.NumRows(),
		From:         table.Dates[0],
		To:           table.Dates[len(table.Dates)-1],
	}
	if strategy == StrategyMaxUtility {
		result.RiskAversion = riskAversion
	}
	if strategy == StrategyTargetReturn {
		result.TargetReturn = *req.TargetReturn
	}

	if req.Save {
		id, err := s.runs.Save(domain.RunKindOptimize, session.Symbols, req, result)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to save run")
		} else {
			result.RunID = id
		}
	}

	s.log.Info().
		Str("strategy", string(strategy)).
		Float64("return", result.Performance.Return).
		Float64("volatility", result.Performance.Volatility).
		Float64("sharpe", result.Performance.Sharpe).
		Msg("Optimization completed")
	s.bus.Emit(events.RunCompleted, moduleName, map[string]interface{}{
		"kind":     string(domain.RunKindOptimize),
		"strategy": string(strategy),
		"run_id":   result.RunID,
		"sharpe":   result.Performance.Sharpe,
	})

	return result, nil
}

// Frontier runs the frontier sweep plus the random portfolio cloud
func (s *Service) Frontier(ctx context.Context, req FrontierRequest) (*FrontierRunResult, error) {
	symbols, err := normalizeSymbols(req.Symbols)
	if err != nil {
		return nil, err
	}

	riskFree := s.riskFreeRate
	if req.RiskFreeRate != nil {
		riskFree = *req.RiskFreeRate
	}

	s.log.Info().
		Strs("symbols", symbols).
		Int("num_points", req.NumPoints).
		Int("num_samples", req.NumSamples).
		Msg("Starting frontier run")
	s.bus.Emit(events.RunStarted, moduleName, map[string]interface{}{
		"kind":    string(domain.RunKindFrontier),
		"symbols": symbols,
	})

	session, table, err := s.prepareSession(ctx, symbols, req.Start, req.End, riskFree)
	if err != nil {
		s.bus.EmitError(moduleName, err, nil)
		return nil, err
	}

	frontier, err := s.engine.Frontier(ctx, session, req.NumPoints, func(done, total int) {
		s.bus.Emit(events.FrontierProgress, moduleName, map[string]interface{}{
			"done":  done,
			"total": total,
		})
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Frontier sweep failed")
		s.bus.EmitError(moduleName, err, nil)
		return nil, err
	}

	cloud, err := s.engine.RandomPortfolios(ctx, session, req.NumSamples, req.Seed, func(done, total int) {
		s.bus.Emit(events.CloudProgress, moduleName, map[string]interface{}{
			"done":  done,
			"total": total,
		})
	})
	if err != nil {
		s.log.Error().Err(err).Msg("Random portfolio sampling failed")
		s.bus.EmitError(moduleName, err, nil)
		return nil, err
	}

	result := &FrontierRunResult{
		Symbols:        session.Symbols,
		Points:         frontier.Points,
		MaxSharpePoint: frontier.MaxSharpePoint,
		MinVolatility:  frontier.MinVolatility,
		MaxSharpe:      frontier.MaxSharpe,
		Cloud:          cloud,
		RiskFreeRate:   riskFree,
		Seed:           req.Seed,
		Observations:   table.NumRows(),
		From:           table.Dates[0],
		To:             table.Dates[len(table.Dates)-1],
	}

	if req.Save {
		id, err := s.runs.Save(domain.RunKindFrontier, session.Symbols, req, result)
		if err != nil {
			s.log.Error().Err(err).Msg("Failed to save run")
		} else {
			result.RunID = id
		}
	}

	s.log.Info().
		Int("points", len(result.Points)).
		Int("samples", cloud.Size()).
		Msg("Frontier run completed")
	s.bus.Emit(events.RunCompleted, moduleName, map[string]interface{}{
		"kind":   string(domain.RunKindFrontier),
		"run_id": result.RunID,
		"points": len(result.Points),
	})

	return result, nil
}

// Discrete converts weights to whole shares, filling missing prices
// from the latest cached closes. Weights may come inline or from a
// saved run (a frontier run contributes its max-Sharpe weights).
func (s *Service) Discrete(ctx context.Context, req DiscreteRequest) (*DiscreteAllocation, error) {
	if len(req.Weights) == 0 && req.RunID != "" {
		weights, err := s.runWeights(req.RunID)
		if err != nil {
			return nil, err
		}
		req.Weights = weights
	}
	if len(req.Weights) == 0 {
		return nil, &InvalidParameterError{
			Param:  "weights",
			Reason: "either weights or run_id is required",
		}
	}

	prices := req.Prices
	if len(prices) == 0 {
		symbols := make([]string, 0, len(req.Weights))
		for sym, w := range req.Weights {
			if w > 0 {
				symbols = append(symbols, sym)
			}
		}
		sort.Strings(symbols)
		fetched, err := s.marketData.LatestPrices(ctx, symbols)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch prices: %w", err)
		}
		prices = fetched
	}
	return AllocateDiscrete(req.Weights, prices, req.TotalValue)
}

// runWeights extracts the weight vector from a saved run
func (s *Service) runWeights(id string) (map[string]float64, error) {
	_, payload, err := s.GetRunPayload(id)
	if err != nil {
		return nil, err
	}
	switch result := payload.(type) {
	case *OptimizeResult:
		return result.Weights, nil
	case *FrontierRunResult:
		if result.MaxSharpe == nil {
			return nil, fmt.Errorf("run %s has no max-Sharpe allocation", id)
		}
		return result.MaxSharpe.Weights, nil
	default:
		return nil, fmt.Errorf("run %s carries no weights", id)
	}
}

// GetRunPayload loads a run and decodes its payload into the result
// type matching its kind
func (s *Service) GetRunPayload(id string) (*RunRecord, interface{}, error) {
	rec, err := s.runs.Get(id)
	if err != nil {
		return nil, nil, err
	}

	switch rec.Kind {
	case domain.RunKindOptimize:
		var result OptimizeResult
		if err := rec.DecodePayload(&result); err != nil {
			return nil, nil, err
		}
		result.RunID = rec.ID
		return rec, &result, nil
	case domain.RunKindFrontier:
		var result FrontierRunResult
		if err := rec.DecodePayload(&result); err != nil {
			return nil, nil, err
		}
		result.RunID = rec.ID
		return rec, &result, nil
	default:
		return nil, nil, fmt.Errorf("unknown run kind %q", rec.Kind)
	}
}

// prepareSession assembles the price table and estimates, emitting the
// intermediate progress events
func (s *Service) prepareSession(ctx context.Context, symbols []string, from, to string, riskFree float64) (*Session, *domain.PriceTable, error) {
	table, err := s.marketData.GetPriceTable(ctx, symbols, from, to)
	if err != nil {
		return nil, nil, err
	}
	s.bus.Emit(events.PricesFetched, moduleName, map[string]interface{}{
		"symbols": symbols,
		"rows":    table.NumRows(),
	})

	session, err := NewSession(table, riskFree, DefaultPeriodsPerYear)
	if err != nil {
		return nil, nil, err
	}
	s.bus.Emit(events.EstimatesReady, moduleName, map[string]interface{}{
		"symbols": session.Symbols,
	})

	return session, table, nil
}

// normalizeSymbols uppercases, trims, and de-duplicates request symbols
func normalizeSymbols(symbols []string) ([]string, error) {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		out = append(out, sym)
	}
	if len(out) < 2 {
		return nil, &EstimationError{
			Reason: fmt.Sprintf("need at least 2 distinct symbols, got %d", len(out)),
		}
	}
	return out, nil
}

package optimization

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/frontier/internal/clients/yahoo"
	"github.com/aristath/frontier/internal/database"
	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/events"
	"github.com/aristath/frontier/internal/modules/marketdata"
)

// stubFetcher serves deterministic histories so a full session can run
// without the network
type stubFetcher struct{}

func (stubFetcher) GetHistoricalPrices(_ context.Context, symbol, _ string) ([]yahoo.HistoricalPrice, error) {
	// Alternating returns, phase-shifted per symbol so the covariance is
	// well conditioned
	up, down := 0.02, -0.01
	if symbol == "BBB" {
		up, down = -0.01, 0.02
	}

	now := time.Now().UTC()
	price := 100.0
	out := make([]yahoo.HistoricalPrice, 60)
	for i := range out {
		out[i] = yahoo.HistoricalPrice{
			Date:     now.AddDate(0, 0, -(len(out) - 1 - i)),
			Close:    price,
			AdjClose: price,
		}
		if i%2 == 0 {
			price *= 1 + up
		} else {
			price *= 1 + down
		}
	}
	return out, nil
}

// eventRecorder collects bus events for assertions
type eventRecorder struct {
	mu    sync.Mutex
	types []events.EventType
}

func (r *eventRecorder) record(e *events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
}

func (r *eventRecorder) count(t events.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, got := range r.types {
		if got == t {
			n++
		}
	}
	return n
}

func newTestService(t *testing.T) (*Service, *eventRecorder) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	log := zerolog.Nop()
	bus := events.NewBus(log)
	recorder := &eventRecorder{}
	for _, eventType := range events.AllTypes {
		bus.Subscribe(eventType, recorder.record)
	}

	priceRepo := marketdata.NewRepository(db.Conn(), log)
	marketData := marketdata.NewService(stubFetcher{}, priceRepo, log)
	runs := NewRunRepository(db.Conn(), log)

	svc := NewService(ServiceConfig{
		MarketData: marketData,
		Runs:       runs,
		Bus:        bus,
		Log:        log,
	})
	return svc, recorder
}

func TestService_OptimizeEndToEnd(t *testing.T) {
	svc, recorder := newTestService(t)

	result, err := svc.Optimize(context.Background(), OptimizeRequest{
		Symbols:  []string{"aaa", "BBB", "AAA"},
		Strategy: "min_volatility",
		Save:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, result.Symbols)
	assert.Equal(t, StrategyMinVolatility, result.Strategy)
	assert.Equal(t, DefaultRiskFreeRate, result.RiskFreeRate)
	assert.Equal(t, 60, result.Observations)
	require.NotEmpty(t, result.RunID)

	sum := 0.0
	for _, w := range result.Weights {
		require.GreaterOrEqual(t, w, 0.0)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 2*(WeightCutoff+5e-6))

	// The stored payload round-trips to the same result
	rec, payload, err := svc.GetRunPayload(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunKindOptimize, rec.Kind)
	stored, ok := payload.(*OptimizeResult)
	require.True(t, ok)
	assert.Equal(t, result.Weights, stored.Weights)

	assert.Equal(t, 1, recorder.count(events.RunStarted))
	assert.Equal(t, 1, recorder.count(events.PricesFetched))
	assert.Equal(t, 1, recorder.count(events.EstimatesReady))
	assert.Equal(t, 1, recorder.count(events.RunCompleted))
	assert.Equal(t, 0, recorder.count(events.RunFailed))
}

func TestService_OptimizeRejectsBadRequests(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Optimize(ctx, OptimizeRequest{Symbols: []string{"AAA", "BBB"}, Strategy: "sideways"})
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	_, err = svc.Optimize(ctx, OptimizeRequest{Symbols: []string{"AAA", "aaa", " "}})
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	_, err = svc.Optimize(ctx, OptimizeRequest{Symbols: []string{"AAA", "BBB"}, Strategy: "target_return"})
	require.Error(t, err)
	assert.True(t, IsInputError(err))
}

func TestService_FrontierEndToEnd(t *testing.T) {
	svc, recorder := newTestService(t)

	result, err := svc.Frontier(context.Background(), FrontierRequest{
		Symbols:    []string{"AAA", "BBB"},
		NumPoints:  20,
		NumSamples: 500,
		Seed:       42,
		Save:       true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, result.Points)
	require.NotNil(t, result.Cloud)
	assert.Equal(t, 500, result.Cloud.Size())
	require.NotNil(t, result.MaxSharpe)
	require.NotEmpty(t, result.RunID)

	rec, payload, err := svc.GetRunPayload(result.RunID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunKindFrontier, rec.Kind)
	stored, ok := payload.(*FrontierRunResult)
	require.True(t, ok)
	assert.Equal(t, len(result.Points), len(stored.Points))
	assert.Equal(t, result.Cloud.Returns, stored.Cloud.Returns)

	assert.Greater(t, recorder.count(events.FrontierProgress), 0)
	assert.Greater(t, recorder.count(events.CloudProgress), 0)
	assert.Equal(t, 1, recorder.count(events.RunCompleted))
}

func TestService_DiscreteFromSavedRun(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Optimize(ctx, OptimizeRequest{
		Symbols: []string{"AAA", "BBB"},
		Save:    true,
	})
	require.NoError(t, err)

	alloc, err := svc.Discrete(ctx, DiscreteRequest{
		RunID:      result.RunID,
		TotalValue: 10000,
		Prices:     map[string]float64{"AAA": 100, "BBB": 50},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, alloc.Shares)
	assert.InDelta(t, 10000, alloc.Spent+alloc.Leftover, 1e-9)
	assert.GreaterOrEqual(t, alloc.Leftover, 0.0)
}

func TestService_DiscreteUsesCachedPrices(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// No explicit prices: the latest cached closes fill in
	alloc, err := svc.Discrete(ctx, DiscreteRequest{
		Weights:    map[string]float64{"AAA": 0.5, "BBB": 0.5},
		TotalValue: 10000,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, alloc.Shares)
}

func TestService_DiscreteValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Discrete(ctx, DiscreteRequest{TotalValue: 100})
	require.Error(t, err)
	assert.True(t, IsInputError(err))

	_, err = svc.Discrete(ctx, DiscreteRequest{RunID: "missing", TotalValue: 100})
	assert.ErrorIs(t, err, ErrRunNotFound)
}

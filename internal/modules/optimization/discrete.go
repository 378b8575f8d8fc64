package optimization

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// DiscreteAllocation is a weight vector converted to whole shares
type DiscreteAllocation struct {
	Shares   map[string]int64 `json:"shares"`
	Spent    float64          `json:"spent"`
	Leftover float64          `json:"leftover"`
}

// AllocateDiscrete turns continuous weights into integer share counts
// for a given portfolio value using the largest-remainder method: each
// asset gets the floor of its ideal share count, then the remaining
// cash buys one extra share per asset in descending order of the
// truncated fraction, skipping shares it can no longer afford.
//
// Zero-weight assets are ignored. Money arithmetic runs on decimals so
// the reported leftover is exact to the cent.
func AllocateDiscrete(weights map[string]float64, prices map[string]float64, totalValue float64) (*DiscreteAllocation, error) {
	if totalValue <= 0 {
		return nil, &InvalidParameterError{
			Param:  "total_value",
			Value:  totalValue,
			Reason: "must be greater than zero",
		}
	}

	symbols := make([]string, 0, len(weights))
	for sym, w := range weights {
		if w < 0 {
			return nil, &InvalidParameterError{
				Param:  "weights[" + sym + "]",
				Value:  w,
				Reason: "must not be negative",
			}
		}
		if w == 0 {
			continue
		}
		price, ok := prices[sym]
		if !ok || price <= 0 {
			return nil, fmt.Errorf("no usable price for %s", sym)
		}
		symbols = append(symbols, sym)
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no positive weights to allocate")
	}
	sort.Strings(symbols)

	total := decimal.NewFromFloat(totalValue)

	type candidate struct {
		symbol    string
		price     decimal.Decimal
		remainder decimal.Decimal
	}

	shares := make(map[string]int64, len(symbols))
	spent := decimal.Zero
	candidates := make([]candidate, 0, len(symbols))

	for _, sym := range symbols {
		price := decimal.NewFromFloat(prices[sym])
		ideal := total.Mul(decimal.NewFromFloat(weights[sym])).Div(price)
		whole := ideal.Floor()

		count := whole.IntPart()
		shares[sym] = count
		spent = spent.Add(price.Mul(whole))
		candidates = append(candidates, candidate{
			symbol:    sym,
			price:     price,
			remainder: ideal.Sub(whole),
		})
	}

	// Largest truncated fraction first; ties resolve by symbol so the
	// result is deterministic.
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].remainder.Equal(candidates[j].remainder) {
			return candidates[i].remainder.GreaterThan(candidates[j].remainder)
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	leftover := total.Sub(spent)
	for _, c := range candidates {
		if c.price.GreaterThan(leftover) {
			continue
		}
		shares[c.symbol]++
		spent = spent.Add(c.price)
		leftover = leftover.Sub(c.price)
	}

	return &DiscreteAllocation{
		Shares:   shares,
		Spent:    spent.InexactFloat64(),
		Leftover: leftover.InexactFloat64(),
	}, nil
}

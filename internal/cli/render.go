package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/frontier/internal/domain"
	"github.com/aristath/frontier/internal/modules/optimization"
)

// Terminal styles
var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#3B82F6")).
		Padding(1, 2)

	labelStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))

	valueStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#10B981"))

	infoStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#6B7280"))
)

func renderTitle(text string) string {
	return titleStyle.Render(text)
}

func renderInfo(text string) string {
	return infoStyle.Render(text)
}

// renderOptimizeResult formats a single allocation for the terminal
func renderOptimizeResult(result *optimization.OptimizeResult) string {
	var b strings.Builder

	b.WriteString(labelStyle.Render("Strategy: "))
	b.WriteString(valueStyle.Render(string(result.Strategy)))
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("History:  %s → %s (%d rows)", result.From, result.To, result.Observations)))
	b.WriteString("\n\n")

	b.WriteString(renderWeights(result.Weights))
	b.WriteString("\n")
	b.WriteString(renderPerformance(result.Performance, result.RiskFreeRate))

	if result.RunID != "" {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Saved as run " + result.RunID))
	}

	return boxStyle.Render(b.String())
}

// renderFrontierResult formats a frontier run for the terminal
func renderFrontierResult(result *optimization.FrontierRunResult) string {
	var b strings.Builder

	b.WriteString(labelStyle.Render(fmt.Sprintf("Frontier: %d points", len(result.Points))))
	if result.Cloud != nil {
		b.WriteString(labelStyle.Render(fmt.Sprintf(", %d random portfolios", result.Cloud.Size())))
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("History:  %s → %s (%d rows)", result.From, result.To, result.Observations)))
	b.WriteString("\n\n")

	b.WriteString(valueStyle.Render("Max Sharpe"))
	b.WriteString("\n")
	b.WriteString(renderWeights(result.MaxSharpe.Weights))
	b.WriteString("\n")
	b.WriteString(renderPerformance(result.MaxSharpe.Performance, result.RiskFreeRate))
	b.WriteString("\n\n")

	b.WriteString(valueStyle.Render("Min Volatility"))
	b.WriteString("\n")
	b.WriteString(renderWeights(result.MinVolatility.Weights))
	b.WriteString("\n")
	b.WriteString(renderPerformance(result.MinVolatility.Performance, result.RiskFreeRate))

	if result.RunID != "" {
		b.WriteString("\n\n")
		b.WriteString(labelStyle.Render("Saved as run " + result.RunID))
	}

	return boxStyle.Render(b.String())
}

// renderWeights prints non-zero weights, largest first
func renderWeights(weights map[string]float64) string {
	type entry struct {
		symbol string
		weight float64
	}
	entries := make([]entry, 0, len(weights))
	for sym, w := range weights {
		if w > 0 {
			entries = append(entries, entry{symbol: sym, weight: w})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].weight != entries[j].weight {
			return entries[i].weight > entries[j].weight
		}
		return entries[i].symbol < entries[j].symbol
	})

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(fmt.Sprintf("  %-8s %6.2f%%\n", e.symbol, e.weight*100))
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderPerformance prints annualized statistics on one line
func renderPerformance(perf domain.Performance, riskFree float64) string {
	return labelStyle.Render(fmt.Sprintf(
		"  return %.2f%%  volatility %.2f%%  sharpe %.2f (rf %.1f%%)",
		perf.Return*100, perf.Volatility*100, perf.Sharpe, riskFree*100,
	))
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/frontier/internal/modules/optimization"
)

// optimizeFlags carries the shared command-line inputs
type optimizeFlags struct {
	symbols      []string
	start        string
	end          string
	riskFree     float64
	riskAversion float64
	targetReturn float64
	save         bool
	pngDir       string
}

func (f *optimizeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.symbols, "symbols", "s", nil, "Ticker symbols (comma separated)")
	cmd.Flags().StringVar(&f.start, "start", "", "History start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.end, "end", "", "History end date (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&f.riskFree, "risk-free", -1, "Annual risk-free rate (default from config)")
	cmd.Flags().BoolVar(&f.save, "save", false, "Persist the run for later retrieval")
	cmd.Flags().StringVar(&f.pngDir, "png-dir", "", "Write chart PNGs into this directory")
}

// newOptimizeCmd creates the optimize command
func newOptimizeCmd() *cobra.Command {
	flags := &optimizeFlags{}
	var strategy string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Compute a single portfolio allocation",
		Long: `Compute one allocation over the given symbols. Without --symbols the
command prompts interactively.

Example: frontier optimize -s AAPL,MSFT,GOOG --strategy max_sharpe`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(flags, strategy)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&strategy, "strategy", "", "min_volatility, max_sharpe, max_utility, or target_return")
	cmd.Flags().Float64Var(&flags.riskAversion, "risk-aversion", -1, "Risk aversion for max_utility (default from config)")
	cmd.Flags().Float64Var(&flags.targetReturn, "target-return", -1, "Annual return for target_return, e.g. 0.12")

	return cmd
}

// newFrontierCmd creates the frontier command
func newFrontierCmd() *cobra.Command {
	flags := &optimizeFlags{}
	var (
		numPoints  int
		numSamples int
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "frontier",
		Short: "Trace the efficient frontier and sample random portfolios",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFrontier(flags, numPoints, numSamples, seed)
		},
	}

	flags.register(cmd)
	cmd.Flags().IntVar(&numPoints, "points", optimization.DefaultFrontierPoints, "Number of frontier targets")
	cmd.Flags().IntVar(&numSamples, "samples", optimization.DefaultCloudSamples, "Number of random portfolios")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Sampling seed (0 = time-based)")

	return cmd
}

func runOptimize(flags *optimizeFlags, strategy string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	symbols := flags.symbols
	if len(symbols) == 0 {
		if symbols, err = PromptForSymbols(); err != nil {
			return err
		}
		if strategy == "" {
			if strategy, err = PromptForStrategy(); err != nil {
				return err
			}
		}
		if flags.start == "" && flags.end == "" {
			if flags.start, flags.end, err = PromptForDateRange(); err != nil {
				return err
			}
		}
		if flags.riskFree < 0 {
			if flags.riskFree, err = PromptForRiskFreeRate(a.cfg.RiskFreeRate); err != nil {
				return err
			}
		}
		if strategy == string(optimization.StrategyMaxUtility) && flags.riskAversion <= 0 {
			if flags.riskAversion, err = PromptForRiskAversion(a.cfg.RiskAversion); err != nil {
				return err
			}
		}
		if strategy == string(optimization.StrategyTargetReturn) && flags.targetReturn < 0 {
			if flags.targetReturn, err = PromptForTargetReturn(); err != nil {
				return err
			}
		}
	}

	req := optimization.OptimizeRequest{
		Symbols:  symbols,
		Start:    flags.start,
		End:      flags.end,
		Strategy: strategy,
		Save:     flags.save,
	}
	if flags.riskFree >= 0 {
		req.RiskFreeRate = &flags.riskFree
	}
	if flags.riskAversion > 0 {
		req.RiskAversion = &flags.riskAversion
	}
	if flags.targetReturn >= 0 {
		req.TargetReturn = &flags.targetReturn
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	fmt.Println(renderTitle("Optimizing " + strings.Join(symbols, ", ")))
	result, err := a.optimization.Optimize(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(renderOptimizeResult(result))

	if flags.pngDir != "" {
		png, err := a.charts.WeightsPNG(result.Weights, "Weights • "+string(result.Strategy))
		if err != nil {
			return err
		}
		path := filepath.Join(flags.pngDir, "weights.png")
		if err := writePNG(path, png); err != nil {
			return err
		}
		fmt.Println(renderInfo("Wrote " + path))
	}

	return nil
}

func runFrontier(flags *optimizeFlags, numPoints, numSamples int, seed int64) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.close()

	symbols := flags.symbols
	if len(symbols) == 0 {
		if symbols, err = PromptForSymbols(); err != nil {
			return err
		}
		if flags.start == "" && flags.end == "" {
			if flags.start, flags.end, err = PromptForDateRange(); err != nil {
				return err
			}
		}
		if flags.riskFree < 0 {
			if flags.riskFree, err = PromptForRiskFreeRate(a.cfg.RiskFreeRate); err != nil {
				return err
			}
		}
	}

	req := optimization.FrontierRequest{
		Symbols:    symbols,
		Start:      flags.start,
		End:        flags.end,
		NumPoints:  numPoints,
		NumSamples: numSamples,
		Seed:       seed,
		Save:       flags.save,
	}
	if flags.riskFree >= 0 {
		req.RiskFreeRate = &flags.riskFree
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	fmt.Println(renderTitle("Tracing frontier for " + strings.Join(symbols, ", ")))
	result, err := a.optimization.Frontier(ctx, req)
	if err != nil {
		return err
	}

	fmt.Println(renderFrontierResult(result))

	if flags.pngDir != "" {
		outputs := []struct {
			name   string
			render func() ([]byte, error)
		}{
			{"frontier.png", func() ([]byte, error) { return a.charts.FrontierPNG(result) }},
			{"weights_max_sharpe.png", func() ([]byte, error) {
				return a.charts.WeightsPNG(result.MaxSharpe.Weights, "Weights • max sharpe")
			}},
			{"weights_min_volatility.png", func() ([]byte, error) {
				return a.charts.WeightsPNG(result.MinVolatility.Weights, "Weights • min volatility")
			}},
		}
		for _, out := range outputs {
			png, err := out.render()
			if err != nil {
				return err
			}
			path := filepath.Join(flags.pngDir, out.name)
			if err := writePNG(path, png); err != nil {
				return err
			}
			fmt.Println(renderInfo("Wrote " + path))
		}
	}

	return nil
}

func writePNG(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

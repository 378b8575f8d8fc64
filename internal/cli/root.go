// Package cli provides the frontier command-line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "frontier",
		Short: "Mean-variance portfolio optimization",
		Long: `Frontier estimates expected returns and covariances from daily price
history and computes long-only portfolio allocations: minimum volatility,
maximum Sharpe ratio, maximum utility, and exact target return, plus the
efficient frontier and a random portfolio cloud.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newOptimizeCmd())
	rootCmd.AddCommand(newFrontierCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("frontier v1.0.0")
		},
	}
}

package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/app"
)

var (
	simulateSymbol string
	simulateAlpha  float64
	simulateYahoo  float64
	simulateCycles int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Run fixed prices through the pipeline to exercise alerting",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateAlpha <= 0 || simulateYahoo <= 0 {
			return errors.New("--alpha and --yahoo must be greater than 0")
		}

		opts := app.SimulateOptions{
			Symbol:     strings.ToUpper(strings.TrimSpace(simulateSymbol)),
			AlphaPrice: simulateAlpha,
			YahooPrice: simulateYahoo,
			Cycles:     simulateCycles,
		}
		return getApp().SimulateAlert(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateSymbol, "symbol", "AAPL", "Symbol to simulate")
	simulateCmd.Flags().Float64Var(&simulateAlpha, "alpha", 0, "Simulated Alpha Vantage price")
	simulateCmd.Flags().Float64Var(&simulateYahoo, "yahoo", 0, "Simulated Yahoo Finance price")
	simulateCmd.Flags().IntVar(&simulateCycles, "cycles", 1, "Number of cycles to run")
}

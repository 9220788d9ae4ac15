package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HariHaran9597/Financial-Data-Accuracy-Dashboard/internal/app"
)

var (
	showLimit  int
	showSymbol string
	showStats  bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent comparison samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:  showLimit,
			Symbol: strings.ToUpper(strings.TrimSpace(showSymbol)),
			Stats:  showStats,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of samples to display")
	showCmd.Flags().StringVar(&showSymbol, "symbol", "", "Filter by symbol (all when empty)")
	showCmd.Flags().BoolVar(&showStats, "stats", false, "Print aggregate stats for the displayed samples")
}

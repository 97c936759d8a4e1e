package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rustyeddy/papertrader/pricing"
	"github.com/spf13/cobra"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Revalue open positions at fresh quotes",
	Long: `Fetch a quote for every held symbol and mark the portfolio at
those prices. Symbols that fail keep their last price.`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
}

func runRefresh(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	rep, err := pricing.NewRefresher(s.prices, s.engine, s.log).Refresh(cmd.Context())
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Refreshed %d symbols\n", len(rep.Updated))
	if len(rep.Failed) > 0 {
		failed := make([]string, 0, len(rep.Failed))
		for sym := range rep.Failed {
			failed = append(failed, sym)
		}
		sort.Strings(failed)
		fmt.Fprintf(out, "  Failed: %s\n", strings.Join(failed, ", "))
	}
	if err != nil {
		return reportSave(cmd, err)
	}

	p := s.engine.Portfolio()
	fmt.Fprintf(out, "  Total value: %s\n", p.TotalValue.StringFixed(2))
	return nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL...",
	Short: "Fetch quotes without trading",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for _, sym := range args {
		q, err := s.prices.Quote(cmd.Context(), sym)
		if err != nil {
			return fmt.Errorf("get quote for %s: %w", sym, err)
		}
		tag := ""
		if q.Synthetic {
			tag = " (synthetic)"
		}
		fmt.Fprintf(out, "%-8s %10s  %s (%s%%)%s\n",
			q.Symbol, q.Price.StringFixed(2), q.Change.StringFixed(2), q.ChangePercent.StringFixed(2), tag)
	}
	return nil
}

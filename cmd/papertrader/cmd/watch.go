package cmd

import (
	"fmt"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Manage the watchlist",
	Long: `Keep a list of symbols to follow.

Subcommands:
  add    - Add symbols
  remove - Remove symbols
  list   - Show the watchlist`,
}

var watchAddCmd = &cobra.Command{
	Use:   "add SYMBOL...",
	Short: "Add symbols to the watchlist",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runWatchAdd,
}

var watchRemoveCmd = &cobra.Command{
	Use:     "remove SYMBOL...",
	Aliases: []string{"rm"},
	Short:   "Remove symbols from the watchlist",
	Args:    cobra.MinimumNArgs(1),
	RunE:    runWatchRemove,
}

var watchListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show the watchlist",
	Args:    cobra.NoArgs,
	RunE:    runWatchList,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.AddCommand(watchAddCmd)
	watchCmd.AddCommand(watchRemoveCmd)
	watchCmd.AddCommand(watchListCmd)
}

func runWatchAdd(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for _, sym := range args {
		added, err := s.engine.AddToWatchlist(cmd.Context(), sym)
		if err != nil {
			return reportSave(cmd, err)
		}
		if added {
			fmt.Fprintf(out, "✓ Watching %s\n", broker.NormalizeSymbol(sym))
		} else {
			fmt.Fprintf(out, "  Already watching %s\n", broker.NormalizeSymbol(sym))
		}
	}
	return nil
}

func runWatchRemove(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	for _, sym := range args {
		removed, err := s.engine.RemoveFromWatchlist(cmd.Context(), sym)
		if err != nil {
			return reportSave(cmd, err)
		}
		if removed {
			fmt.Fprintf(out, "✓ Removed %s\n", broker.NormalizeSymbol(sym))
		} else {
			fmt.Fprintf(out, "  Not watching %s\n", broker.NormalizeSymbol(sym))
		}
	}
	return nil
}

func runWatchList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	out := cmd.OutOrStdout()
	items := s.engine.Watchlist()
	if len(items) == 0 {
		fmt.Fprintln(out, "Watchlist is empty")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(out, "%-8s added %s\n", it.Symbol, it.AddedAt.UTC().Format(time.RFC3339))
	}
	return nil
}

package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/sim"
	"github.com/spf13/cobra"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Show cash, positions and P/L",
	Long: `Print the current portfolio valued at the last marked prices.
Run "papertrader refresh" first to revalue at fresh quotes.`,
	Args: cobra.NoArgs,
	RunE: runPortfolio,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List executed trades, most recent first",
	Long: `List the trade journal.

Examples:
  papertrader history
  papertrader history --symbol AAPL --side sell
  papertrader history --format csv > trades.csv
  papertrader history --format org >> journal.org`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historySymbol string
	historySide   string
	historyLimit  int
	historySince  string
	historyFormat string
)

func init() {
	rootCmd.AddCommand(portfolioCmd)
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historySymbol, "symbol", "s", "", "only this symbol")
	historyCmd.Flags().StringVar(&historySide, "side", "", "only buy or sell")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 0, "at most this many trades")
	historyCmd.Flags().StringVar(&historySince, "since", "", "only trades at or after this RFC3339 time")
	historyCmd.Flags().StringVarP(&historyFormat, "format", "f", "table", "output format: table, csv or org")
}

func runPortfolio(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	writePortfolio(cmd.OutOrStdout(), s.engine.Portfolio(), s.engine.StartingCash(), s.cfg.Account.Currency)
	return nil
}

func writePortfolio(out io.Writer, p sim.Portfolio, starting fmt.Stringer, currency string) {
	fmt.Fprintf(out, "Cash:            %s %s\n", p.Cash.StringFixed(2), currency)
	fmt.Fprintf(out, "Positions value: %s\n", p.PositionsValue.StringFixed(2))
	fmt.Fprintf(out, "Total value:     %s (started at %s)\n", p.TotalValue.StringFixed(2), starting)
	fmt.Fprintf(out, "Unrealized P/L:  %s (%s%%)\n", p.TotalPL.StringFixed(2), p.TotalPLPercent.StringFixed(2))
	fmt.Fprintf(out, "Realized P/L:    %s\n", p.RealizedPL.StringFixed(2))
	fmt.Fprintf(out, "Commissions:     %s\n", p.Commissions.StringFixed(2))
	fmt.Fprintf(out, "Net P/L:         %s\n", p.NetPL().StringFixed(2))

	if len(p.Positions) == 0 {
		fmt.Fprintln(out, "\nNo open positions")
		return
	}
	fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG\tPRICE\tVALUE\tP/L\tP/L %\t")
	for _, pos := range p.Positions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t\n",
			pos.Symbol, pos.Quantity,
			pos.AveragePrice.StringFixed(4), pos.CurrentPrice.StringFixed(2),
			pos.TotalValue.StringFixed(2), pos.UnrealizedPL.StringFixed(2),
			pos.UnrealizedPLPercent.StringFixed(2))
	}
	tw.Flush()
}

func runHistory(cmd *cobra.Command, args []string) error {
	f := journal.Filter{Symbol: broker.NormalizeSymbol(historySymbol), Limit: historyLimit}
	if historySide != "" {
		side, err := broker.ParseSide(historySide)
		if err != nil {
			return err
		}
		f.Side = side
	}
	if historySince != "" {
		since, err := time.Parse(time.RFC3339, historySince)
		if err != nil {
			return fmt.Errorf("parse since: %w", err)
		}
		f.Since = since
	}

	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	trades := s.engine.Trades(f)
	out := cmd.OutOrStdout()
	switch historyFormat {
	case "table", "":
		writeTrades(out, trades)
	case "csv":
		return journal.WriteCSV(out, trades)
	case "org":
		fmt.Fprint(out, journal.FormatTradesOrg(trades))
	default:
		return fmt.Errorf("unknown format %q (want table, csv or org)", historyFormat)
	}
	return nil
}

func writeTrades(out io.Writer, trades []journal.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(out, "No trades")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tSYMBOL\tQTY\tPRICE\tCOMMISSION\tTOTAL\tREALIZED\tID")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			t.Time.UTC().Format(time.RFC3339), t.Side, t.Symbol, t.Quantity,
			t.Price.StringFixed(4), t.Commission.StringFixed(2), t.Total.StringFixed(2),
			t.RealizedPL.StringFixed(2), t.ID)
	}
	tw.Flush()

	sum := journal.Summarize(trades)
	fmt.Fprintf(out, "\n%d trades (%d buys, %d sells), commissions %s, realized %s\n",
		sum.Trades, sum.Buys, sum.Sells, sum.Commissions.StringFixed(2), sum.RealizedPL.StringFixed(2))
}

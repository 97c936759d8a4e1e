package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// ErrRejected is returned when the engine refuses an order.
var ErrRejected = errors.New("order rejected")

var buyCmd = &cobra.Command{
	Use:   "buy SYMBOL QUANTITY",
	Short: "Buy shares",
	Long: `Buy shares at the current quote, or at --price when given.

Examples:
  papertrader buy AAPL 10
  papertrader buy AAPL 10 --type limit --limit 150
  papertrader buy MSFT 5 --price 410.25`,
	Args: cobra.ExactArgs(2),
	RunE: runOrder(broker.Buy),
}

var sellCmd = &cobra.Command{
	Use:   "sell SYMBOL QUANTITY",
	Short: "Sell shares from an open position",
	Long: `Sell shares at the current quote, or at --price when given.

Examples:
  papertrader sell AAPL 10
  papertrader sell AAPL 5 --type stop --stop 140`,
	Args: cobra.ExactArgs(2),
	RunE: runOrder(broker.Sell),
}

var (
	orderType  string
	orderLimit string
	orderStop  string
	orderPrice string
)

func init() {
	rootCmd.AddCommand(buyCmd)
	rootCmd.AddCommand(sellCmd)

	for _, c := range []*cobra.Command{buyCmd, sellCmd} {
		c.Flags().StringVarP(&orderType, "type", "t", "market", "order type: market, limit or stop")
		c.Flags().StringVar(&orderLimit, "limit", "", "limit price (limit orders)")
		c.Flags().StringVar(&orderStop, "stop", "", "stop price (stop orders)")
		c.Flags().StringVar(&orderPrice, "price", "", "reference price; fetched from the quote gateway when empty")
	}
}

func runOrder(side broker.Side) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		qty, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("quantity must be a whole number: %w", err)
		}
		typ, err := broker.ParseOrderType(orderType)
		if err != nil {
			return err
		}
		req := broker.OrderRequest{
			Symbol:   args[0],
			Side:     side,
			Type:     typ,
			Quantity: qty,
		}
		if req.LimitPrice, err = optionalPrice("limit", orderLimit); err != nil {
			return err
		}
		if req.StopPrice, err = optionalPrice("stop", orderStop); err != nil {
			return err
		}

		ctx := cmd.Context()
		s, err := openSession(ctx, cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		var ref decimal.Decimal
		if orderPrice != "" {
			if ref, err = decimal.NewFromString(orderPrice); err != nil {
				return fmt.Errorf("parse price: %w", err)
			}
		} else {
			q, err := s.prices.Quote(ctx, req.Symbol)
			if err != nil {
				return fmt.Errorf("get quote for %s: %w", req.Symbol, err)
			}
			ref = q.Price
			if q.Synthetic {
				fmt.Fprintf(cmd.ErrOrStderr(), "note: %s quote is synthetic\n", q.Symbol)
			}
		}

		res, saveErr := s.engine.ExecuteOrder(ctx, req, ref)

		out := cmd.OutOrStdout()
		if !res.Accepted {
			fmt.Fprintf(out, "✗ %s %d %s rejected: %s\n", side, qty, broker.NormalizeSymbol(req.Symbol), res.Reason)
			return fmt.Errorf("%w: %s", ErrRejected, res.Reason)
		}

		t, _ := s.engine.Trade(res.TradeID)
		fmt.Fprintf(out, "✓ %s %d %s @ %s\n", t.Side, t.Quantity, t.Symbol, t.Price.StringFixed(4))
		fmt.Fprintf(out, "  Trade:      %s\n", t.ID)
		fmt.Fprintf(out, "  Commission: %s\n", t.Commission.StringFixed(2))
		fmt.Fprintf(out, "  Total:      %s\n", t.Total.StringFixed(2))
		if t.Side == broker.Sell {
			fmt.Fprintf(out, "  Realized:   %s\n", t.RealizedPL.StringFixed(2))
		}
		fmt.Fprintf(out, "  Cash:       %s\n", s.engine.Portfolio().Cash.StringFixed(2))
		return reportSave(cmd, saveErr)
	}
}

func optionalPrice(name, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse %s price: %w", name, err)
	}
	return &d, nil
}

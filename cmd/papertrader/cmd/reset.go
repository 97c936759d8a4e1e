package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Return the account to its starting cash",
	Long: `Close every position at no cost and clear the trade journal and
valuation history. The watchlist is kept. Requires --yes.`,
	Args: cobra.NoArgs,
	RunE: runReset,
}

var resetYes bool

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "confirm the reset")
}

func runReset(cmd *cobra.Command, args []string) error {
	if !resetYes {
		return errors.New("reset discards every trade; pass --yes to confirm")
	}

	s, err := openSession(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.engine.Reset(cmd.Context()); err != nil {
		return reportSave(cmd, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Portfolio reset to %s %s\n",
		s.engine.StartingCash().StringFixed(2), s.cfg.Account.Currency)
	return nil
}

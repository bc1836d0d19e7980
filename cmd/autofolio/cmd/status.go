package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current portfolio state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	st := eng.PortfolioState()

	fmt.Printf("Cash:          %s %s\n", st.Cash.StringFixed(2), cfg.Account.Currency)
	fmt.Printf("Total Equity:  %s %s (positions at cost)\n", st.TotalEquity.StringFixed(2), cfg.Account.Currency)
	fmt.Printf("Stage:         %s\n", eng.Stage())

	if len(st.Positions) == 0 {
		fmt.Println("No open positions.")
		return nil
	}

	fmt.Println()
	fmt.Printf("%-6s %12s %12s %12s %12s\n", "TICKER", "SHARES", "COST BASIS", "STOP", "OPENED")
	for _, p := range st.Positions {
		fmt.Printf("%-6s %12s %12s %12s %12s\n",
			p.Ticker, p.Shares.String(), p.CostBasis.StringFixed(2),
			p.StopLoss.StringFixed(2), p.OpenedOn.Format("2006-01-02"))
	}
	return nil
}

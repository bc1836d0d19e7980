package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the trade log",
	Long:  "Show the append-only trade log, oldest first.",
	RunE:  runHistory,
}

var (
	historyFrom string
	historyTo   string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyFrom, "from", "", "start date (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "end date (YYYY-MM-DD)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var from, to time.Time
	if historyFrom != "" {
		if from, err = time.Parse("2006-01-02", historyFrom); err != nil {
			return fmt.Errorf("parse --from: %w", err)
		}
	}
	if historyTo != "" {
		if to, err = time.Parse("2006-01-02", historyTo); err != nil {
			return fmt.Errorf("parse --to: %w", err)
		}
	}

	eng, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	trades, err := eng.TradeHistory(from, to)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		fmt.Println("No trades recorded.")
		return nil
	}

	fmt.Printf("%-5s %-12s %-6s %-5s %12s %12s %14s %s\n",
		"SEQ", "DATE", "SIDE", "TICK", "SHARES", "PRICE", "CASH AFTER", "REASON")
	for _, t := range trades {
		fmt.Printf("%-5d %-12s %-6s %-5s %12s %12s %14s %s\n",
			t.Seq, t.Date.Format("2006-01-02"), t.Side, t.Ticker,
			t.Shares.String(), t.Price.StringFixed(2), t.CashAfter.StringFixed(2), t.Reason)
	}
	return nil
}

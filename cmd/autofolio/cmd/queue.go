package cmd

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"autofolio/journal"
	"autofolio/orders"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the pending order queue",
	Long: `Enqueue buy/sell intents for the next cycle. Intents for the same
ticker and side are coalesced. The next run drains the whole queue and
executes at the open.`,
	RunE: runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add TICKER",
	Short: "Queue an order for the next open",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueAdd,
}

var (
	queueSide   string
	queueShares float64
	queueAlloc  float64
	queueStop   float64
)

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueAddCmd)

	queueAddCmd.Flags().StringVar(&queueSide, "side", journal.SideBuy, "buy or sell")
	queueAddCmd.Flags().Float64Var(&queueShares, "shares", 0, "share count (0 to size buys from allocation)")
	queueAddCmd.Flags().Float64Var(&queueAlloc, "alloc", 0, "equity fraction for sizing a buy")
	queueAddCmd.Flags().Float64Var(&queueStop, "stop", 0, "stop-loss price for a buy")
}

func runQueueList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	pending, err := orders.NewQueue(cfg.Storage.OrdersFile).Load()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("Queue is empty.")
		return nil
	}

	fmt.Printf("%-16s %-6s %-5s %10s %8s %10s\n", "ID", "SIDE", "TICK", "SHARES", "ALLOC", "STOP")
	for _, o := range pending {
		fmt.Printf("%-16s %-6s %-5s %10s %8s %10s\n",
			o.ID, o.Side, o.Ticker, o.Shares.String(), o.AllocPct.String(), o.StopLoss.String())
	}
	return nil
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	side := strings.ToLower(queueSide)
	if side != journal.SideBuy && side != journal.SideSell {
		return fmt.Errorf("--side must be %q or %q", journal.SideBuy, journal.SideSell)
	}

	o := orders.QueuedOrder{
		Ticker:   strings.ToUpper(args[0]),
		Side:     side,
		Shares:   decimal.NewFromFloat(queueShares),
		AllocPct: decimal.NewFromFloat(queueAlloc),
		StopLoss: decimal.NewFromFloat(queueStop),
		Reason:   journal.ReasonManual,
	}

	if err := orders.NewQueue(cfg.Storage.OrdersFile).Add(o); err != nil {
		return err
	}
	fmt.Printf("Queued %s %s for the next open.\n", o.Side, o.Ticker)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"autofolio/perf"
)

var perfCmd = &cobra.Command{
	Use:   "perf [benchmark...]",
	Short: "Show performance metrics",
	Long: `Compute performance metrics from the journaled snapshot history:
total return, annualized Sharpe ratio, maximum drawdown and CAPM
beta/alpha against a benchmark.`,
	RunE: runPerf,
}

func init() {
	rootCmd.AddCommand(perfCmd)
}

func runPerf(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	eng, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	m, err := eng.Performance(context.Background(), args)
	if errors.Is(err, perf.ErrInsufficientData) {
		fmt.Println("Not enough history yet; run a few cycles first.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Total Return:  %.2f%%\n", m.TotalReturn*100)
	fmt.Printf("Max Drawdown:  %.2f%%\n", m.MaxDrawdown*100)
	if m.SharpeOK {
		fmt.Printf("Sharpe:        %.2f\n", m.Sharpe)
	} else {
		fmt.Println("Sharpe:        insufficient data")
	}
	if m.BenchmarkOK {
		fmt.Printf("Beta:          %.2f\n", m.Beta)
		fmt.Printf("Alpha:         %.2f%%\n", m.Alpha*100)
	} else {
		fmt.Println("Beta/Alpha:    insufficient data")
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"autofolio/market"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one trading cycle",
	Long: `Run one full trading cycle: fetch prices, check stop-losses,
execute queued orders at the open, valuate and persist.

Example:
  autofolio run -f autofolio.yaml --date 2026-08-27`,
	RunE: runRun,
}

var (
	runDate       string
	runForceHours bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runDate, "date", "", "cycle date (YYYY-MM-DD, default today)")
	runCmd.Flags().BoolVar(&runForceHours, "force", false, "run even outside regular market hours")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	date := time.Now().UTC()
	if runDate != "" {
		date, err = time.Parse("2006-01-02", runDate)
		if err != nil {
			return fmt.Errorf("parse --date: %w", err)
		}
	}

	if !runForceHours && runDate == "" && !market.IsRegularHours(time.Now()) {
		fmt.Println("Outside regular market hours; pass --force to run anyway.")
		return nil
	}

	eng, store, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := eng.RunCycle(context.Background(), date)
	if res != nil {
		printCycleResult(res)
	}
	return err
}

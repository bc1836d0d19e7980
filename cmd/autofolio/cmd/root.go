package cmd

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"autofolio/config"
	"autofolio/engine"
	"autofolio/journal"
	"autofolio/market"
	"autofolio/orders"
)

var rootCmd = &cobra.Command{
	Use:   "autofolio",
	Short: "An automated equity portfolio manager",
	Long: `Autofolio manages a small equity portfolio on a daily cycle.

Each cycle fetches market data (with a fallback source), checks every
open position against its stop-loss, executes queued orders at the
open, valuates the book and persists a per-date snapshot plus an
append-only trade log to SQLite.`,
}

var (
	cfgPath string
	verbose bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "f", "", "path to config file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	cobra.OnInitialize(func() {
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	})
}

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgPath)
}

// buildEngine wires the standard stack: Alpaca behind a breaker with
// Stooq as the fallback, a SQLite journal and the JSON order queue.
func buildEngine(cfg *config.Config) (*engine.Engine, journal.Journal, error) {
	timeout, err := cfg.Market.ParseFetchTimeout()
	if err != nil {
		timeout = 30 * time.Second
	}

	chain := market.NewChain(timeout,
		market.WithBreaker(market.NewAlpaca(timeout)),
		market.NewStooq(),
	)

	store, err := journal.NewSQLite(cfg.Storage.DBPath)
	if err != nil {
		return nil, nil, err
	}

	queue := orders.NewQueue(cfg.Storage.OrdersFile)

	eng, err := engine.New(cfg, chain, store, queue)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}

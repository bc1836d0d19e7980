package cmd

import (
	"fmt"

	"autofolio/engine"
)

func printCycleResult(res *engine.CycleResult) {
	fmt.Println("==================================================")
	fmt.Println(" Cycle Result")
	fmt.Println("==================================================")
	fmt.Printf("Date:          %s\n", res.Date.Format("2006-01-02"))
	fmt.Printf("Status:        %s\n", res.Status)
	fmt.Printf("Cash:          %s\n", res.Cash.StringFixed(2))
	fmt.Printf("Total Equity:  %s\n", res.Equity.StringFixed(2))

	if len(res.Executed) > 0 {
		fmt.Println()
		fmt.Println("Executed Trades")
		fmt.Println("--------------------------------------------------")
		for _, t := range res.Executed {
			fmt.Printf("%-6s %-5s %10s @ %-10s (%s)\n",
				t.Side, t.Ticker, t.Shares.String(), t.Price.StringFixed(2), t.Reason)
		}
	}

	fmt.Println()
	fmt.Println("Performance")
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Total Return:  %.2f%%\n", res.Metrics.TotalReturn*100)
	fmt.Printf("Max Drawdown:  %.2f%%\n", res.Metrics.MaxDrawdown*100)
	if res.Metrics.SharpeOK {
		fmt.Printf("Sharpe:        %.2f\n", res.Metrics.Sharpe)
	} else {
		fmt.Println("Sharpe:        insufficient data")
	}
	if res.Metrics.BenchmarkOK {
		fmt.Printf("Beta:          %.2f\n", res.Metrics.Beta)
		fmt.Printf("Alpha:         %.2f%%\n", res.Metrics.Alpha*100)
	} else {
		fmt.Println("Beta/Alpha:    insufficient data")
	}

	if len(res.Errors) > 0 {
		fmt.Println()
		fmt.Println("Errors")
		fmt.Println("--------------------------------------------------")
		for _, e := range res.Errors {
			if e.Ticker != "" {
				fmt.Printf("- [%s] %s: %s\n", e.Stage, e.Ticker, e.Detail)
			} else {
				fmt.Printf("- [%s] %s\n", e.Stage, e.Detail)
			}
		}
	}
	fmt.Println()
}

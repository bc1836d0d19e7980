package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"autofolio/config"
)

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default config file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "autofolio.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.Default().SaveToFile(path); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

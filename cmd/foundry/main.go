// Package main provides the foundry CLI: the chat gateways, an interactive
// terminal session and offline export of saved runs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rahul/foundry/pkg/config"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "foundry",
		Short: "Foundry - turn a challenge into a venture",
		Long: `Foundry drives a staged LLM pipeline from a social or market challenge
to a branded solution with business deliverables.

Commands:
  serve     Run the configured chat gateways
  run       Interactive session in this terminal
  runs      List saved runs
  export    Write a saved run to html, pdf, yaml or txt`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config.{json,yaml})")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newRunsCommand())
	rootCmd.AddCommand(newExportCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(configPath)
}

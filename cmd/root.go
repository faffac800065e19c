/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ragbridge",
	Short: "Broker to work-queue routing pipeline with vector search",
	Long: `ragbridge moves messages between an AMQP broker, a Redis work queue and HTTP
callbacks, keeping track of where each message came from so its answer reaches
the matching egress queue.

Each pipeline process is a subcommand of this binary.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

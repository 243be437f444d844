// Package cli wires the dmbridge commands.
package cli

import (
	"github.com/spf13/cobra"
)

// version can be overridden at build time via:
// go build -ldflags "-X github.com/dmbridge/dmbridge/internal/cli.version=1.2.3"
var version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "dmbridge",
	Short: "dmbridge - relay between social DMs and the agent workspace",
	Long: "dmbridge relays direct messages from the social platform into agent\n" +
		"workspace channels and agent replies back out, as one continuous\n" +
		"conversation.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(provisionCmd)
}

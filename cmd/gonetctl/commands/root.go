// Package commands implements the gonetctl cobra command tree: a CLI that
// exercises the gonet library directly (resolver, tcpsock, message,
// tlsctx) rather than talking to a daemon over RPC.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// outputFormat holds the value of the persistent --format flag. No
// subcommand reads it; every command prints plain text regardless.
var outputFormat string

// rootCmd is the top-level cobra command for gonetctl.
var rootCmd = &cobra.Command{
	Use:   "gonetctl",
	Short: "CLI for exercising the gonet networking library",
	Long:  "gonetctl resolves names, dials and listens on tcpsock endpoints, and sends framed messages directly through the gonet packages.",
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(dialCmd())
	rootCmd.AddCommand(listenCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

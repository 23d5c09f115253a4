package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quotagate",
	Short: "Real-time quota gateway between portal callers and the billing authority",
	Long: `QuotaGate sits between portal clients and the billing authority.

It aggregates quota figures from the billing service and the optional
subscription overlay, relays the authority's live event stream to
clients, and keeps serving sensible defaults when upstreams are down.

Quick start:
  quotagate serve     # Start the gateway

Management:
  quotagate accounts  # Link callers to billing accounts
  quotagate tokens    # Issue credentials
  quotagate validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "quotagate.yaml", "config file path")
}

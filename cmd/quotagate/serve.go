package main

import (
	"fmt"
	"os"

	"github.com/artpar/quotagate/bootstrap"
	"github.com/artpar/quotagate/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the quota gateway server",
	Long: `Start the QuotaGate server.

The server will:
  - Load configuration from quotagate.yaml (or --config)
  - Or load configuration from QUOTAGATE_* environment variables
  - Open the local profile database
  - Serve /stream, /quota/status, and /quota/history

Environment variables (for Docker deployments):
  QUOTAGATE_BILLING_URL       - Billing authority URL (required)
  QUOTAGATE_SUBSCRIPTION_URL  - Subscription overlay URL (optional)
  QUOTAGATE_DATABASE_DSN      - Database path (default: quotagate.db)
  QUOTAGATE_SERVER_PORT       - Server port (default: 8080)
  QUOTAGATE_AUTH_JWT_SECRET   - Secret for JWT signing
  QUOTAGATE_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  quotagate serve
  quotagate serve --config /etc/quotagate/config.yaml
  quotagate serve --hot-reload=false

  # Docker (env vars only):
  QUOTAGATE_BILLING_URL=http://billing:9000 quotagate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	hasEnvConfig := os.Getenv("QUOTAGATE_BILLING_URL") != ""

	if !hasConfigFile && !hasEnvConfig {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s\n", cfgFile)
		fmt.Println("Option 2: Set QUOTAGATE_BILLING_URL environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  QUOTAGATE_BILLING_URL=http://billing:9000 quotagate serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.New(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/open-builders/premium-backend/docs"
)

// @title           Premium Backend API
// @version         1.0
// @description     Premium subscriptions for a Telegram bot: grants, payment claims, the payment queue and the admin action log.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api

// @securityDefinitions.apikey AdminKey
// @in header
// @name X-Admin-Key
// @description Shared admin secret

// @tag.name admin
// @tag.description Dashboard operations behind the admin key

// @tag.name me
// @tag.description Mini App endpoints authenticated with Telegram init data

// Version is set at build time with -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "premium-backend",
	Short:   "Premium subscription backend for a Telegram bot",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the bot and the background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd.Context())
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send due reminders, expire lapsed grants and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSweep(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

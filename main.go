package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/atelier-storefront/pkg/config"
	_ "github.com/tanpawarit/atelier-storefront/pkg/logger/autoload"
)

type AppConfig struct {
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HitsPerPage         int           `envconfig:"HITS_PER_PAGE" default:"12"`
	ToolResultLimit     int           `envconfig:"TOOL_RESULT_LIMIT" default:"5"`
	SearchTimeout       time.Duration `envconfig:"SEARCH_TIMEOUT" default:"10s"`
	SearchSettleTimeout time.Duration `envconfig:"SEARCH_SETTLE_TIMEOUT" default:"15s"`
	SummaryBackend      string        `envconfig:"SUMMARY_BACKEND" default:"agent"` // agent | llm | none
	SummaryDebounce     time.Duration `envconfig:"SUMMARY_DEBOUNCE" default:"300ms"`
	SummaryPerMinute    int           `envconfig:"SUMMARY_REQUESTS_PER_MINUTE" default:"30"`
	SessionStore        string        `envconfig:"SESSION_STORE" default:"memory"` // memory | redis | upstash
	ToolResultTopic     string        `envconfig:"TOOL_RESULT_DESTINATION"`
	ShutdownTimeout     time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

var envFile string

var rootCmd = &cobra.Command{
	Use:   "storefront",
	Short: "Faceted search, cart and agent tool bridge for the storefront",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configx.SetEnvFile(envFile)
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "path to .env file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(routeCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package cmd implements the choicetree command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/choicetree/internal/core/db"
	"github.com/solatis/choicetree/internal/core/logging"
)

// Version is the release version reported by serve.
const Version = "0.3.0"

var (
	configFile string
	dbURL      string
	logLevel   string
	logFormat  string

	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "choicetree",
	Short: "Decision tree rule validation service",
	Long: `choicetree validates the rules attached to decision points and choices of a
homebuilder option catalog: circular references, duplicate rules, target
eligibility and keyword search over the tree.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Config{Level: logLevel, Format: logFormat, Writer: os.Stderr})
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (json, text)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// openDB opens the database named by --db-url, falling back to url.
func openDB(ctx context.Context, url string) (*sqlx.DB, error) {
	if dbURL != "" {
		url = dbURL
	}
	if url == "" {
		return nil, fmt.Errorf("--db-url required")
	}
	return db.Open(ctx, url)
}

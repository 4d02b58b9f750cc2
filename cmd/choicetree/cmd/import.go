package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/solatis/choicetree/internal/core/config"
	"github.com/solatis/choicetree/internal/core/db"
	"github.com/solatis/choicetree/internal/core/store"
	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/snapshot"
)

var importCmd = &cobra.Command{
	Use:   "import <snapshot.yaml>",
	Short: "Publish a YAML tree snapshot and its rules to the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		tree, saved, err := snapshot.Decode(f)
		if err != nil {
			return err
		}
		// Reject rules the service could not load back
		if _, err := rules.Compile(tree, saved); err != nil {
			return err
		}

		cfg, err := config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		database, err := openDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()
		if err := requireMigrated(ctx, database); err != nil {
			return err
		}
		queries, err := db.LoadQueries(database)
		if err != nil {
			return err
		}

		imported, err := store.New(queries, logger).Import(ctx, tree, saved)
		if err != nil {
			return err
		}

		logger.Info("snapshot imported",
			slog.Int64("tree_version_id", int64(tree.VersionID)),
			slog.Int("rules", len(imported)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

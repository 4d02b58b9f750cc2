package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/solatis/choicetree/internal/core/api"
	"github.com/solatis/choicetree/internal/core/auth"
	"github.com/solatis/choicetree/internal/core/config"
	"github.com/solatis/choicetree/internal/core/db"
	"github.com/solatis/choicetree/internal/core/metrics"
	"github.com/solatis/choicetree/internal/core/server"
	"github.com/solatis/choicetree/internal/core/store"
	"github.com/solatis/choicetree/internal/rules"
	"github.com/solatis/choicetree/internal/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC rule service",
	Long: `Start the choicetree.v1.RuleService gRPC service.

Trees and rules come from the database (--db-url) or, with --tree-file, from a
YAML snapshot that is reloaded when it changes. API keys are always checked
against the database; --insecure serves without authentication.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9464", "prometheus listen address (empty disables)")
	serveCmd.Flags().String("tree-file", "", "serve trees and rules from a YAML snapshot")
	serveCmd.Flags().Bool("insecure", false, "serve without API key authentication")
}

// applyServeFlags overrides config values with explicitly set flags.
func applyServeFlags(cmd *cobra.Command, cfg *config.ServiceConfig) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("tree-file") {
		cfg.TreeFile, _ = flags.GetString("tree-file")
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyServeFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}
	insecure, _ := cmd.Flags().GetBool("insecure")

	var database *sqlx.DB
	var queries *db.Queries
	if cfg.DatabaseURL != "" {
		database, err = db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer database.Close()

		if err := requireMigrated(ctx, database); err != nil {
			return err
		}
		if queries, err = db.LoadQueries(database); err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	var provider api.Provider
	switch {
	case cfg.TreeFile != "":
		file, err := snapshot.Open(cfg.TreeFile, logger)
		if err != nil {
			return err
		}
		if cfg.WatchTreeFile {
			g.Go(func() error { return file.Watch(ctx) })
		}
		provider = file
		logger.Info("serving tree snapshot", slog.String("path", cfg.TreeFile))
	case queries != nil:
		provider = store.New(queries, logger)
	default:
		return fmt.Errorf("no tree source: set --db-url or --tree-file")
	}

	var authenticator *auth.Authenticator
	if !insecure {
		if queries == nil {
			return fmt.Errorf("API key authentication requires --db-url (or pass --insecure)")
		}
		secrets, err := config.HMACSecrets()
		if err != nil {
			return fmt.Errorf("failed to load HMAC secrets: %w", err)
		}
		if len(secrets) == 0 {
			return fmt.Errorf("no HMAC secrets configured (set CT_HMAC_SECRET environment variable)")
		}
		authenticator = auth.NewAuthenticator(secrets, queries, logger)
	}

	m := metrics.New()
	service, err := api.NewRuleService(provider, rules.NewEngine(logger, m), cfg)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, server.Options{
		Authenticator: authenticator,
		Observer:      m,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting choicetree",
		slog.String("version", Version),
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
	)

	g.Go(func() error { return grpcServer.Start(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return grpcServer.Shutdown(shutdownCtx)
	})

	if cfg.MetricsAddr != "" {
		metricsServer := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metricsMux(m),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("metrics listening", slog.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", slog.Any("error", err))
		return err
	}
	return nil
}

func metricsMux(m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}

// requireMigrated refuses to serve a database with pending migrations.
func requireMigrated(ctx context.Context, database *sqlx.DB) error {
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'choicetree migrate up' first", s.ID)
		}
	}
	return nil
}


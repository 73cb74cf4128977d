package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	webAdapter "billing-backend/internal/adapters/web"
	"billing-backend/internal/app"
	"billing-backend/internal/core"
	"billing-backend/internal/db"
	"billing-backend/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "billingd",
	Short: "Billing backend: document numbering and inventory ledger service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.NewPool(cmd.Context())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		tenants := core.NewTenantService(pool)
		parties := core.NewPartyService(pool)
		products := core.NewProductService(pool)
		sequences := core.NewSequenceService(pool)
		stock := core.NewStockService(pool, products)
		documents := core.NewDocumentService(pool, sequences, stock, parties)

		svc := app.NewAppService(pool, tenants, parties, products, documents, stock)

		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		handler := webAdapter.NewHandler(svc, os.Getenv("ALLOWED_ORIGINS"))

		srvLog := logger.WithComponent("server")
		srvLog.Info().Str("port", port).Msg("server starting")
		return http.ListenAndServe(":"+port, handler)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply SQL migrations in lexical order",
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := db.NewPool(cmd.Context())
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()

		dir, _ := cmd.Flags().GetString("dir")
		return applyMigrations(cmd.Context(), pool, dir)
	},
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir %q: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	log := logger.WithComponent("migrate")
	for _, name := range files {
		sql, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		if _, err := pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply migration %q: %w", name, err)
		}
		log.Info().Str("file", name).Msg("migration applied")
	}
	log.Info().Int("count", len(files)).Msg("migrations complete")
	return nil
}

func main() {
	_ = godotenv.Load()
	logger.Setup()

	migrateCmd.Flags().String("dir", "migrations", "directory containing .sql migration files")
	rootCmd.AddCommand(serveCmd, migrateCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		mainLog := logger.WithComponent("main")
		mainLog.Fatal().Err(err).Msg("command failed")
	}
}

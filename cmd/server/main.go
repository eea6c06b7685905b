package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/invoiceguard/backend/internal/config"
	"github.com/invoiceguard/backend/internal/graph"
	"github.com/invoiceguard/backend/internal/logging"
	"github.com/invoiceguard/backend/internal/mlscore"
	"github.com/invoiceguard/backend/internal/risk"
	"github.com/invoiceguard/backend/internal/server"
	"github.com/invoiceguard/backend/internal/service"
	"github.com/invoiceguard/backend/internal/store"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	ledger, err := buildStore(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to create ledger store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := ledger.Close(context.Background()); err != nil {
			logger.Warn("closing ledger store failed", "error", err)
		}
	}()

	weights, err := loadWeights(cfg.Risk.WeightsFile)
	if err != nil {
		logger.Error("failed to load risk weights", "error", err, "path", cfg.Risk.WeightsFile)
		os.Exit(1)
	}

	var scorer service.Scorer
	if cfg.ML.URL != "" {
		scorer = mlscore.NewClient(cfg.ML.URL, cfg.ML.APIKey, cfg.ML.Timeout)
		logger.Info("ml scorer enabled", "url", cfg.ML.URL, "timeout", cfg.ML.Timeout.String())
	}

	invoiceService := service.NewInvoiceService(ledger, risk.NewEngine(weights), scorer, logger)
	invoiceService.WithBlendWeights(cfg.ML.RuleWeight, cfg.ML.MLWeight)
	apiHandlers := server.NewAPIHandlers(logger, invoiceService)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: ledger},
		API:              apiHandlers,
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// buildStore selects the ledger backend. Without GRAPH_URI everything lives
// in memory, which is the default for local runs.
func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Store, error) {
	if cfg.Graph.URI == "" {
		logger.Info("using in-memory ledger store")
		return store.NewMemoryStore(), nil
	}

	opts := graph.Options{
		URI:            cfg.Graph.URI,
		Database:       cfg.Graph.Database,
		Username:       cfg.Graph.Username,
		Password:       cfg.Graph.Password,
		MaxConnections: cfg.Graph.MaxConnections,
	}
	client, err := graph.NewNeo4jClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("using graph ledger store", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return store.NewGraphStore(client), nil
}

func loadWeights(path string) (risk.Weights, error) {
	if path == "" {
		return risk.DefaultWeights(), nil
	}
	return risk.LoadWeightsFile(path)
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}

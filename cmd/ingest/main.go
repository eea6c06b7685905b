package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/invoiceguard/backend/internal/config"
	"github.com/invoiceguard/backend/internal/generator"
	"github.com/invoiceguard/backend/internal/graph"
	"github.com/invoiceguard/backend/internal/logging"
	"github.com/invoiceguard/backend/internal/mlscore"
	"github.com/invoiceguard/backend/internal/risk"
	"github.com/invoiceguard/backend/internal/service"
	"github.com/invoiceguard/backend/internal/store"
)

var errMissingDataset = errors.New("dataset not found")

func main() {
	_ = godotenv.Load()

	var (
		datasetDir  = flag.String("dataset-dir", "./seed-data", "Directory containing invoices.json")
		invoicePath = flag.String("invoices", "", "Path to invoices.json (overrides dataset-dir)")
		workers     = flag.Int("workers", 4, "Number of concurrent workers for ingestion")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	path, err := resolveDatasetPath(*datasetDir, *invoicePath)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}

	dataset, err := generator.ReadDataset(path)
	if err != nil {
		logger.Error("failed to load invoices", "error", err, "path", path)
		os.Exit(1)
	}
	if len(dataset.Items) == 0 {
		logger.Error("invoice dataset empty", "path", path)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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
	}

	svc := service.NewInvoiceService(ledger, risk.NewEngine(weights), scorer, logger)
	svc.WithBlendWeights(cfg.ML.RuleWeight, cfg.ML.MLWeight)
	ingestor := service.NewBulkIngestor(svc, *workers)

	start := time.Now()
	logger.Info("ingesting invoices", "count", len(dataset.Items), "workers", *workers)
	if err := ingestor.Ingest(ctx, dataset.Items); err != nil {
		logger.Error("ingestion finished with errors", "error", err)
		os.Exit(1)
	}

	logger.Info("ingestion complete", "duration", time.Since(start).String(), "invoices", len(dataset.Items))
}

func resolveDatasetPath(baseDir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("stat %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}
	path := filepath.Join(baseDir, "invoices.json")
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s", errMissingDataset, path)
	}
	return path, nil
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.Config) (store.Store, error) {
	if cfg.Graph.URI == "" {
		logger.Warn("GRAPH_URI not set, ingesting into an in-memory store that vanishes on exit")
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
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return nil, err
	}
	logger.Info("connected to graph", "uri", cfg.Graph.URI, "database", cfg.Graph.Database)
	return store.NewGraphStore(client), nil
}

func loadWeights(path string) (risk.Weights, error) {
	if path == "" {
		return risk.DefaultWeights(), nil
	}
	return risk.LoadWeightsFile(path)
}

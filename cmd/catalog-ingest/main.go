// Package main implements the catalog-ingest CLI for loading product
// catalogs into the chatbot's vector store.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/catalog"
	"github.com/tungtran1995/chatbot-server-test/internal/config"
	"github.com/tungtran1995/chatbot-server-test/internal/embeddings"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

var (
	configPath string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "catalog-ingest [products.json]",
	Short: "Embed and load a product catalog into the chatbot vector store",
	Long: `catalog-ingest reads a JSON array of products, embeds each product's
title and description, and upserts them into the products collection.

Bad records are reported and skipped; the rest of the batch still loads.

Examples:
  # Ingest a catalog with default config
  catalog-ingest products.json

  # Ingest from stdin with a config file
  cat products.json | catalog-ingest --config config.yaml -`,
	Args:    cobra.ExactArgs(1),
	Version: version,
	RunE:    runIngest,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (YAML)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	products, err := loadProducts(args[0])
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No products to ingest.")
		return nil
	}

	store, err := vectorstore.NewStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	provider, err := embeddings.NewProvider(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	defer func() {
		_ = provider.Close()
	}()

	ingestor, err := catalog.NewIngestor(store, provider, cfg.VectorStore.Collections.Products, logger)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	logger.Info(ctx, "ingesting catalog",
		zap.Int("products", len(products)),
		zap.String("collection", cfg.VectorStore.Collections.Products),
	)

	report := ingestor.IngestAll(ctx, products)
	printReport(cmd, report)

	if report.Succeeded() == 0 {
		return fmt.Errorf("no products ingested")
	}
	return nil
}

// loadProducts reads the catalog from a file, or stdin when path is "-".
func loadProducts(path string) ([]catalog.Product, error) {
	if path == "-" {
		return catalog.LoadProducts(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	products, err := catalog.LoadProducts(f)
	if err != nil {
		return nil, fmt.Errorf("reading catalog %s: %w", path, err)
	}
	return products, nil
}

func printReport(cmd *cobra.Command, report catalog.Report) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested %d of %d products\n", report.Succeeded(), len(report.Results))
	for _, r := range report.Results {
		if r.Err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "  skipped %q: %v\n", r.Title, r.Err)
		}
	}
}

// Chatbotd serves a Vietnamese product-catalog chatbot over HTTP.
//
// The daemon wires the semantic router, hybrid retriever, session memory,
// semantic cache and chat completion into a single /api/v1/chatbot endpoint.
//
// Usage:
//
//	# Start with defaults (embedded chromem store under ~/.chatbotd)
//	chatbotd
//
//	# Start with a config file
//	chatbotd -config config.yaml
//
//	# Show version information
//	chatbotd version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tungtran1995/chatbot-server-test/internal/cache"
	"github.com/tungtran1995/chatbot-server-test/internal/config"
	"github.com/tungtran1995/chatbot-server-test/internal/embeddings"
	chathttp "github.com/tungtran1995/chatbot-server-test/internal/http"
	"github.com/tungtran1995/chatbot-server-test/internal/llm"
	"github.com/tungtran1995/chatbot-server-test/internal/logging"
	"github.com/tungtran1995/chatbot-server-test/internal/orchestrator"
	"github.com/tungtran1995/chatbot-server-test/internal/retrieval"
	"github.com/tungtran1995/chatbot-server-test/internal/rewriter"
	"github.com/tungtran1995/chatbot-server-test/internal/router"
	"github.com/tungtran1995/chatbot-server-test/internal/session"
	"github.com/tungtran1995/chatbot-server-test/internal/telemetry"
	"github.com/tungtran1995/chatbot-server-test/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  chatbotd           Start the chatbot daemon\n")
			fmt.Fprintf(os.Stderr, "  chatbotd version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("chatbotd\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the daemon and blocks until the context is cancelled.
//
// Initialization order: config, logger, telemetry, vector store and
// embedding provider, then the chat pipeline (router, retriever, memory,
// cache, rewriter, orchestrator), then the HTTP server.
func run(ctx context.Context, configPath string) error {
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

	logger.Info(ctx, "starting chatbotd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("vectorstore", cfg.VectorStore.Provider),
		zap.String("router", cfg.Router.Strategy),
	)

	tel, err := telemetry.New(ctx, cfg.Telemetry, logger)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn(ctx, "telemetry shutdown failed", zap.Error(err))
		}
	}()

	handler, closeDeps, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing pipeline: %w", err)
	}
	defer closeDeps()

	srv, err := chathttp.NewServer(handler, cfg.Server, logger)
	if err != nil {
		return fmt.Errorf("initializing http server: %w", err)
	}
	srv.Echo().GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

// buildPipeline assembles the chat request pipeline. The returned func
// releases held resources.
func buildPipeline(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*orchestrator.Orchestrator, func(), error) {
	store, err := vectorstore.NewStore(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating vector store: %w", err)
	}

	provider, err := embeddings.NewProvider(cfg.Embedding)
	if err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("creating embedding provider: %w", err)
	}
	closeDeps := func() {
		if err := provider.Close(); err != nil {
			logger.Warn(ctx, "closing embedding provider failed", zap.Error(err))
		}
		if err := store.Close(); err != nil {
			logger.Warn(ctx, "closing vector store failed", zap.Error(err))
		}
	}

	completer, err := llm.NewOpenAICompleter(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey.Value(),
	})
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating completer: %w", err)
	}

	classifier, err := router.New(ctx, cfg.Router, provider, logger)
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating router: %w", err)
	}

	retriever, err := retrieval.NewHybridRetriever(store, cfg.VectorStore.Collections.Products, retrieval.Config{
		Limit:          cfg.Retrieval.Limit,
		FusionConstant: cfg.Retrieval.FusionConstant,
		VectorWeight:   cfg.Retrieval.VectorWeight,
		LexicalWeight:  cfg.Retrieval.LexicalWeight,
	}, logger)
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating retriever: %w", err)
	}

	gate, err := retrieval.NewGate(cfg.Retrieval.SimilarityThreshold, retrieval.ScoreOrder(cfg.Retrieval.ScoreOrder))
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating relevance gate: %w", err)
	}

	memory, err := session.NewMemory(store, cfg.VectorStore.Collections.History, logger)
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating session memory: %w", err)
	}

	var responseCache orchestrator.ResponseCache
	if cfg.Cache.Enabled {
		sc, err := cache.New(store, cfg.VectorStore.Collections.Cache, cfg.Cache.SimilarityThreshold, logger)
		if err != nil {
			closeDeps()
			return nil, nil, fmt.Errorf("creating semantic cache: %w", err)
		}
		responseCache = sc
	}

	rw, err := rewriter.New(completer, memory, cfg.Chat.MaxHistory, logger)
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating query rewriter: %w", err)
	}

	orch, err := orchestrator.New(classifier, rw, provider, retriever, gate, memory, responseCache, completer, orchestrator.Config{
		Persona:            cfg.Chat.Persona,
		Apology:            cfg.Chat.Apology,
		MaxHistory:         cfg.Chat.MaxHistory,
		RewriteEnabled:     cfg.Chat.RewriteEnabled,
		CacheEnabled:       cfg.Cache.Enabled,
		CacheLookupEnabled: cfg.Cache.LookupEnabled,
	}, logger)
	if err != nil {
		closeDeps()
		return nil, nil, fmt.Errorf("creating orchestrator: %w", err)
	}

	return orch, closeDeps, nil
}

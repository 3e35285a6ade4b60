package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/onebox/internal/config"
	"github.com/mikey/onebox/internal/core"
	"github.com/mikey/onebox/internal/di"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	indexer core.EmailIndexer,
	store *core.ContextStore,
	pipeline *core.Pipeline,
	supervisors *core.SupervisorGroup,
	cacheRepo core.CacheRepository,
	llmClient core.CompletionClient,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The index must exist before any message is dispatched.
	if err := indexer.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to prepare search index", zap.Error(err))
		return err
	}

	// Load the reply context. A missing file disables suggestions but
	// does not stop ingestion.
	retrievalCfg := cfg.GetRetrieval()
	if f, err := os.Open(retrievalCfg.ContextPath); err != nil {
		logger.Warn("Reply context file unavailable, suggestions will have no context",
			zap.String("path", retrievalCfg.ContextPath),
			zap.Error(err))
	} else {
		loadErr := store.Load(ctx, f)
		f.Close()
		if loadErr != nil {
			logger.Warn("Failed to load reply context", zap.Error(loadErr))
		}
	}

	pipeline.Start(ctx)
	supervisors.Start(ctx)

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Supervisors stop emitting before the pipeline channel closes.
	supervisors.Stop()
	pipeline.Stop()

	// Close any resources that need closing
	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		stopper.Stop()
	}
	if closer, ok := llmClient.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close LLM client", zap.Error(err))
		}
	}

	stats := pipeline.Stats()
	logger.Info("Pipeline drained",
		zap.Int64("received", stats.Received.Load()),
		zap.Int64("normalize_failures", stats.NormalizeFailures.Load()),
		zap.Int64("dispatched", stats.Dispatched.Load()),
		zap.Int64("notified", stats.Notified.Load()))

	for account, status := range supervisors.Status() {
		logger.Info("Account final state",
			zap.String("account", account),
			zap.String("state", status.State.String()),
			zap.String("last_error", status.LastError))
	}

	return nil
}

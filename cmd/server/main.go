package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"memoria/internal/api"
	"memoria/internal/graph"
	"memoria/internal/ingest"
	"memoria/internal/memory"
	"memoria/internal/scheduler"
	"memoria/internal/store"
	"memoria/pkg/config"
	"memoria/pkg/logger"
)

func main() {
	// Initialize logger
	if err := logger.Init(os.Getenv("ENV")); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Open the graph store
	graphStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open graph store", zap.Error(err))
	}
	defer graphStore.Close()

	// Start the decay scheduler
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()

	sched := scheduler.New(graphStore, logger.Named("scheduler"))
	sched.SetDefaults(graph.ResolvedDecayConfig{
		DecayRate:               cfg.DecayRate,
		ImportanceBoostOnAccess: cfg.DecayAccessBoost,
		MinUrgencyThreshold:     cfg.MinUrgencyThreshold,
		PruneOlderThanDays:      float64(cfg.PruneOlderThanDays),
	})
	interval := time.Duration(cfg.DecayIntervalMinutes) * time.Minute
	if err := sched.Start(schedCtx, interval); err != nil {
		log.Fatal("Failed to start decay scheduler", zap.Error(err))
	}
	defer sched.Stop()

	// Initialize dependencies
	extractor := memory.NewExtractor()
	ingester := ingest.NewIngester(graphStore, extractor, logger.Named("ingest"))

	// Setup router
	server := api.NewServer(graphStore, sched, ingester, log)
	router := server.Router(cfg.IsProduction())

	// Start server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// openStore opens the configured graph store backend.
func openStore(cfg *config.Config, log *zap.Logger) (graph.Store, error) {
	switch cfg.StoreBackend {
	case "sqlite":
		log.Info("Using SQLite store", zap.String("path", cfg.SQLitePath))
		return store.Open(cfg.SQLitePath)
	default:
		driver, err := neo4j.NewDriverWithContext(
			cfg.Neo4jURI,
			neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""),
		)
		if err != nil {
			return nil, fmt.Errorf("create neo4j driver: %w", err)
		}
		if err := driver.VerifyConnectivity(context.Background()); err != nil {
			return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
		}
		log.Info("Using Neo4j store", zap.String("uri", cfg.Neo4jURI))
		return graph.NewRepository(driver), nil
	}
}

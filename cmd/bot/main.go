package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"memoria/internal/adapter"
	"memoria/internal/discord"
	"memoria/internal/graph"
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
	log.Info("Starting Discord bot...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if cfg.DiscordBotToken == "" {
		log.Fatal("DISCORD_BOT_TOKEN is required")
	}

	// Open the graph store
	graphStore, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("Failed to open graph store", zap.Error(err))
	}
	defer graphStore.Close()

	// Initialize dependencies
	extractor := memory.NewExtractor()

	var llmAdapter *adapter.LLMAdapter
	if cfg.LLMBaseURL != "" {
		llmAdapter = adapter.NewLLMAdapter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID)
	} else {
		log.Warn("LLM_BASE_URL not set, bot will capture memories without replying")
	}

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

	// Create Discord session
	dg, err := discordgo.New("Bot " + cfg.DiscordBotToken)
	if err != nil {
		log.Fatal("Failed to create Discord session", zap.Error(err))
	}

	// Create message handler
	messageHandler := discord.NewHandler(graphStore, extractor, llmAdapter, logger.Named("discord"))
	dg.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		messageHandler.HandleMessage(s, m)
	})

	// Required intents:
	// - IntentsGuilds: guild metadata for the tenant registry
	// - IntentsGuildMessages: read messages in guild channels
	// - IntentsDirectMessages: read DM messages
	// - IntentsMessageContent: access to message text
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

	// Open connection
	if err := dg.Open(); err != nil {
		log.Fatal("Failed to open Discord connection", zap.Error(err))
	}
	defer dg.Close()

	log.Info("Discord bot is running. Press CTRL-C to exit.")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Discord bot...")
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

package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// App
	Port string
	Env  string

	// Storage backend: "neo4j" or "sqlite"
	StoreBackend string
	SQLitePath   string

	// Neo4j
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// AI
	LLMBaseURL string
	LLMAPIKey  string
	ModelID    string

	// Discord
	DiscordBotToken string

	// Decay scheduler
	DecayIntervalMinutes int
	DecayRate            float64
	DecayAccessBoost     float64
	MinUrgencyThreshold  float64
	PruneOlderThanDays   int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		StoreBackend:         getEnv("STORE_BACKEND", "neo4j"),
		SQLitePath:           getEnv("SQLITE_PATH", "memoria.db"),
		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", "password"),
		LLMBaseURL:           getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:            getEnv("LLM_API_KEY", ""),
		ModelID:              getEnv("MODEL_ID", "gpt-4o-mini"),
		DiscordBotToken:      getEnv("DISCORD_BOT_TOKEN", ""),
		DecayIntervalMinutes: getEnvInt("DECAY_INTERVAL_MINUTES", 60),
		DecayRate:            getEnvFloat("DECAY_RATE", 0.1),
		DecayAccessBoost:     getEnvFloat("DECAY_ACCESS_BOOST", 0.05),
		MinUrgencyThreshold:  getEnvFloat("MIN_URGENCY_THRESHOLD", 0.1),
		PruneOlderThanDays:   getEnvInt("PRUNE_OLDER_THAN_DAYS", 30),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case "neo4j":
		if c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required")
		}
		if c.Neo4jUser == "" {
			return fmt.Errorf("NEO4J_USER is required")
		}
		if c.Neo4jPassword == "" {
			return fmt.Errorf("NEO4J_PASSWORD is required")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required")
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be neo4j or sqlite, got %q", c.StoreBackend)
	}
	if c.DecayIntervalMinutes <= 0 {
		return fmt.Errorf("DECAY_INTERVAL_MINUTES must be positive")
	}
	// LLM settings and Discord token are optional for development
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var result float64
		if _, err := fmt.Sscanf(value, "%f", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

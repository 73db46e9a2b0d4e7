package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the service
type Config struct {
	// Mode
	Debug bool

	// HTTP server
	ListenAddr string

	// Ledger RPC
	RPCURL             string
	RPCTimeout         time.Duration
	TokenProgramID     string
	Token2022ProgramID string

	// Market metadata service
	MetadataAPIURL  string
	MetadataTimeout time.Duration

	// Quote stream (optional, empty disables the feed)
	QuoteWSURL string

	// Telegram (optional, empty disables the bot)
	TelegramToken  string
	TelegramChatID int64

	// Database (sqlite path or postgres:// URL)
	DatabasePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		ListenAddr: getEnv("LISTEN_ADDR", ":8080"),

		RPCURL:             getEnv("RPC_URL", "https://api.mainnet-beta.solana.com"),
		RPCTimeout:         getEnvDuration("RPC_TIMEOUT", 10*time.Second),
		TokenProgramID:     getEnv("TOKEN_PROGRAM_ID", "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
		Token2022ProgramID: getEnv("TOKEN_2022_PROGRAM_ID", "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"),

		MetadataAPIURL:  getEnv("METADATA_API_URL", "https://metadata-api.dflow.net"),
		MetadataTimeout: getEnvDuration("METADATA_TIMEOUT", 10*time.Second),

		QuoteWSURL: os.Getenv("QUOTE_WS_URL"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/predictfolio.db"),
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC_URL is required")
	}
	if cfg.MetadataAPIURL == "" {
		return nil, fmt.Errorf("METADATA_API_URL is required")
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

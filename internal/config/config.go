// Package config loads tracker settings from the environment.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/metadata"
)

// State backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type Config struct {
	Solana   SolanaConfig
	Metadata MetadataConfig
	Store    StoreConfig
	Telegram TelegramConfig
	Stream   StreamConfig
	Server   ServerConfig
	Log      LogConfig
}

type SolanaConfig struct {
	HTTPEndpoint string
	WSEndpoint   string // empty: inferred from HTTPEndpoint
}

type MetadataConfig struct {
	TokenListURL string
	HeliusAPIKey string
	HeliusURL    string
	OnChain      bool
}

type StoreConfig struct {
	Backend       string
	Path          string
	PostgresDSN   string
	RedisURL      string
	RedisPassword string
	RedisKey      string
	ClickhouseDSN string // empty: journal kept in memory
}

type TelegramConfig struct {
	BotToken string // empty: notifications are logged only
}

type StreamConfig struct {
	Workers        int
	ReconnectDelay time.Duration
}

type ServerConfig struct {
	APIAddr     string // empty disables the control API
	MetricsAddr string
}

type LogConfig struct {
	Level string
	Debug bool
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds and validates a Config from environment variables.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Solana: SolanaConfig{
			HTTPEndpoint: getEnv("SOLANA_RPC", domain.DefaultHTTPEndpoint),
			WSEndpoint:   getEnv("SOLANA_WS", ""),
		},
		Metadata: MetadataConfig{
			TokenListURL: getEnv("TRACKER_TOKEN_LIST_URL", metadata.DefaultJupiterURL),
			HeliusAPIKey: getEnv("HELIUS_API_KEY", ""),
			HeliusURL:    getEnv("HELIUS_URL", metadata.DefaultHeliusURL),
			OnChain:      getEnvBool("TRACKER_ONCHAIN_METADATA", false),
		},
		Store: StoreConfig{
			Backend:       strings.ToLower(getEnv("TRACKER_STORE_BACKEND", BackendFile)),
			Path:          getEnv("TRACKER_STORE", "./tracker_state.json"),
			PostgresDSN:   getEnv("POSTGRES_DSN", ""),
			RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisKey:      getEnv("REDIS_STATE_KEY", "tracker:state"),
			ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		Stream: StreamConfig{
			Workers:        getEnvInt("TRACKER_WORKERS", 8),
			ReconnectDelay: time.Duration(getEnvInt("TRACKER_RECONNECT_DELAY_MS", 3000)) * time.Millisecond,
		},
		Server: ServerConfig{
			APIAddr:     getEnv("TRACKER_API_ADDR", ":8080"),
			MetricsAddr: getEnv("TRACKER_METRICS_ADDR", ":9090"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the tracker cannot start with.
func (c *Config) Validate() error {
	if !hasScheme(c.Solana.HTTPEndpoint, "http", "https") {
		return fmt.Errorf("SOLANA_RPC must be an http(s) url, got %q", c.Solana.HTTPEndpoint)
	}
	if c.Solana.WSEndpoint != "" && !hasScheme(c.Solana.WSEndpoint, "ws", "wss") {
		return fmt.Errorf("SOLANA_WS must be a ws(s) url, got %q", c.Solana.WSEndpoint)
	}

	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("TRACKER_STORE is required for the file backend")
		}
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown TRACKER_STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Stream.Workers <= 0 {
		return fmt.Errorf("TRACKER_WORKERS must be positive")
	}
	if c.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("TRACKER_RECONNECT_DELAY_MS must be positive")
	}
	return nil
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

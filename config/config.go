package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration sourced from the environment.
// Detection tunables live in the rules file (see rules.go), not here.
type Config struct {
	IsProd bool

	Discord  DiscordConfig
	Telegram TelegramConfig

	Database DatabaseConfig
	Redis    RedisConfig
	Factors  FactorsConfig

	Detector DetectorConfig
	Rules    RulesFileConfig

	Polymarket PolymarketConfig

	HealthServer HealthServerConfig
}

// DiscordConfig holds Discord-related configuration.
type DiscordConfig struct {
	BotToken  string
	ChannelID string
}

// TelegramConfig holds Telegram-related configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	DSN string
}

// RedisConfig holds the factor-cache Redis settings.
type RedisConfig struct {
	Addr           string
	Password       string
	FactorTTL      time.Duration
	FactorCooldown time.Duration
}

// FactorsConfig holds the factor-estimation API settings. An empty APIKey
// disables estimation; the heuristic fallback takes over.
type FactorsConfig struct {
	Endpoint string
	APIKey   string
	Model    string
}

// DetectorConfig holds the scan loop settings.
type DetectorConfig struct {
	PollInterval    time.Duration
	TradesPerPoll   int
	TopMarketsCount int
	MarketRefresh   time.Duration

	ScoreThreshold int // minimum insider score to alert on
	Workers        int
	ActivityLimit  int // activity page size for wallet snapshots

	// Consecutive failing trades before a scan aborts; one bad payload must
	// not kill the batch, a dead API must not spin it.
	MaxConsecutiveErrors int

	// Coordinated-activity suppression: more than MaxAlertsPerMarket alerts
	// for one market inside CoordinationWindow mutes further ones.
	CoordinationWindow time.Duration
	MaxAlertsPerMarket int

	UseWebSocket bool
}

// RulesFileConfig points at the hot-reloadable rules file.
type RulesFileConfig struct {
	Path           string
	ReloadInterval time.Duration
}

// PolymarketConfig holds Polymarket API configuration.
type PolymarketConfig struct {
	GammaAPIURL string
	DataAPIURL  string
	MarketWSURL string
}

// HealthServerConfig holds health check server configuration.
type HealthServerConfig struct {
	Enabled bool
	Port    int
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		IsProd: envBool("STAGE", "PROD"),

		Discord: DiscordConfig{
			BotToken:  envString("DISCORD_BOT_TOKEN", ""),
			ChannelID: envString("DISCORD_CHANNEL_ID", ""),
		},

		Telegram: TelegramConfig{
			BotToken: envString("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   envString("TELEGRAM_CHAT_ID", ""),
		},

		Database: DatabaseConfig{
			DSN: envString("DATABASE_DSN", "host=localhost user=polyradar password=polyradar dbname=polyradar port=5432 sslmode=disable"),
		},

		Redis: RedisConfig{
			Addr:           envString("REDIS_ADDR", ""),
			Password:       envString("REDIS_PASSWORD", ""),
			FactorTTL:      envDuration("FACTOR_CACHE_TTL", 6*time.Hour),
			FactorCooldown: envDuration("FACTOR_COOLDOWN", 10*time.Minute),
		},

		Factors: FactorsConfig{
			Endpoint: envString("FACTORS_API_URL", "https://api.openai.com/v1"),
			APIKey:   envString("FACTORS_API_KEY", ""),
			Model:    envString("FACTORS_MODEL", "gpt-4o-mini"),
		},

		Detector: DetectorConfig{
			PollInterval:    envDuration("POLL_INTERVAL", 30*time.Second),
			TradesPerPoll:   envInt("TRADES_PER_POLL", 500),
			TopMarketsCount: envInt("TOP_MARKETS_COUNT", 100),
			MarketRefresh:   envDuration("MARKET_REFRESH_INTERVAL", 5*time.Minute),

			ScoreThreshold: envInt("SCORE_THRESHOLD", 80),
			Workers:        envInt("DETECTOR_WORKERS", 8),
			ActivityLimit:  envInt("WALLET_ACTIVITY_LIMIT", 100),

			MaxConsecutiveErrors: envInt("MAX_CONSECUTIVE_ERRORS", 10),

			CoordinationWindow: envDuration("COORDINATION_WINDOW", 6*time.Hour),
			MaxAlertsPerMarket: envInt("MAX_ALERTS_PER_MARKET", 3),

			UseWebSocket: envBoolDefault("USE_WEBSOCKET", false),
		},

		Rules: RulesFileConfig{
			Path:           envString("RULES_FILE", ""),
			ReloadInterval: envDuration("RULES_RELOAD_INTERVAL", 1*time.Minute),
		},

		Polymarket: PolymarketConfig{
			GammaAPIURL: envString("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
			DataAPIURL:  envString("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),
			MarketWSURL: envString("POLYMARKET_MARKET_WS_URL", ""),
		},

		HealthServer: HealthServerConfig{
			Enabled: envBoolDefault("HEALTH_SERVER_ENABLED", true),
			Port:    envInt("HEALTH_SERVER_PORT", 8080),
		},
	}
}

// Helper functions for parsing environment variables

func envString(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envBool(key, trueValue string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), trueValue)
}

func envBoolDefault(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return strings.EqualFold(v, "true") || strings.EqualFold(v, "1") || strings.EqualFold(v, "yes")
}

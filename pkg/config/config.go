package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Environment
// variables are read only here.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Core components
	Orchestrator OrchestratorConfig
	Signal       SignalConfig
	Simulator    SimulatorConfig
	Provider     ProviderConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// OrchestratorConfig holds task scheduling parameters.
type OrchestratorConfig struct {
	PollInterval     time.Duration // poll loop period
	BatchSize        int           // max tasks claimed per poll cycle
	ProgressInterval int           // update progress every N snapshots
}

// SignalConfig holds signal generation thresholds.
type SignalConfig struct {
	BuyThreshold    float64 // composite score at or above which to buy
	SellThreshold   float64 // composite score at or below which to sell
	MinStrength     float64 // below this, downgrade to HOLD
	MaxPositionSize float64 // cap on position_size emitted by the generator
	MinConfidence   float64 // filter: below this, rewrite to HOLD
	MinFilterStr    float64 // filter: non-HOLD below this strength is rewritten
}

// SimulatorConfig holds portfolio simulation policy. Annualization
// constants are configuration, not literals.
type SimulatorConfig struct {
	MaxPositionRatio   float64 // max fraction of capital in one position
	StopLossRatio      float64 // forced sell below avg_cost * (1 - ratio)
	RiskFreeRate       float64 // annual, for Sharpe
	TradingDaysPerYear int
	LotSize            int64 // minimum tradable share unit
}

// ProviderConfig holds market-data provider settings.
type ProviderConfig struct {
	Exchange      string // calendar exchange code
	RemoteEnabled bool   // fall back to the remote kline endpoint
	BaseURL       string
	RatePerSecond float64 // outbound request rate limit
	Timeout       time.Duration
}

// Load reads configuration from environment variables. Only this
// function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8086"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		Orchestrator: OrchestratorConfig{
			PollInterval:     getEnvAsDuration("ORCH_POLL_INTERVAL", "30s"),
			BatchSize:        getEnvAsInt("ORCH_BATCH_SIZE", 10),
			ProgressInterval: getEnvAsInt("ORCH_PROGRESS_INTERVAL", 10),
		},

		Signal: SignalConfig{
			BuyThreshold:    getEnvAsFloat("SIGNAL_BUY_THRESHOLD", 0.6),
			SellThreshold:   getEnvAsFloat("SIGNAL_SELL_THRESHOLD", -0.6),
			MinStrength:     getEnvAsFloat("SIGNAL_MIN_STRENGTH", 0.1),
			MaxPositionSize: getEnvAsFloat("SIGNAL_MAX_POSITION_SIZE", 1.0),
			MinConfidence:   getEnvAsFloat("SIGNAL_MIN_CONFIDENCE", 0.3),
			MinFilterStr:    getEnvAsFloat("SIGNAL_MIN_FILTER_STRENGTH", 0.2),
		},

		Simulator: SimulatorConfig{
			MaxPositionRatio:   getEnvAsFloat("SIM_MAX_POSITION_RATIO", 0.10),
			StopLossRatio:      getEnvAsFloat("SIM_STOP_LOSS_RATIO", 0.05),
			RiskFreeRate:       getEnvAsFloat("SIM_RISK_FREE_RATE", 0.03),
			TradingDaysPerYear: getEnvAsInt("SIM_TRADING_DAYS_PER_YEAR", 252),
			LotSize:            int64(getEnvAsInt("SIM_LOT_SIZE", 100)),
		},

		Provider: ProviderConfig{
			Exchange:      getEnv("PROVIDER_EXCHANGE", "SSE"),
			RemoteEnabled: getEnvAsBool("PROVIDER_REMOTE_ENABLED", false),
			BaseURL:       getEnv("PROVIDER_BASE_URL", "https://push2his.eastmoney.com"),
			RatePerSecond: getEnvAsFloat("PROVIDER_RATE_PER_SECOND", 5),
			Timeout:       getEnvAsDuration("PROVIDER_TIMEOUT", "15s"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks required configuration values.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Orchestrator.BatchSize <= 0 {
		return fmt.Errorf("ORCH_BATCH_SIZE must be > 0")
	}
	if c.Orchestrator.PollInterval <= 0 {
		return fmt.Errorf("ORCH_POLL_INTERVAL must be > 0")
	}

	if c.Signal.BuyThreshold <= 0 || c.Signal.SellThreshold >= 0 {
		return fmt.Errorf("signal thresholds must satisfy sell < 0 < buy")
	}

	if c.Simulator.MaxPositionRatio <= 0 || c.Simulator.MaxPositionRatio > 1 {
		return fmt.Errorf("SIM_MAX_POSITION_RATIO must be in (0, 1]")
	}
	if c.Simulator.TradingDaysPerYear <= 0 {
		return fmt.Errorf("SIM_TRADING_DAYS_PER_YEAR must be > 0")
	}
	if c.Simulator.LotSize <= 0 {
		return fmt.Errorf("SIM_LOT_SIZE must be > 0")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		d, _ := time.ParseDuration(defaultValue)
		return d
	}
	return value
}

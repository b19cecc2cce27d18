package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Storage
	Database DatabaseConfig
	Redis    RedisConfig

	// External collaborators
	LLM      LLMConfig
	Macro    MacroConfig
	Mentions MentionsConfig
	Releases ReleasesConfig

	// Pipeline tunables
	Pipeline  PipelineConfig
	Retry     RetryConfig
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration.
// URL is optional: without it snapshots are persisted to SnapshotPath.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Enabled reports whether a Postgres connection is configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Prefix   string
}

// LLMConfig holds the generative-text provider configuration.
// Any OpenAI-compatible chat completion endpoint works (Groq by default).
type LLMConfig struct {
	BaseURL           string
	Model             string
	APIKeys           []string // credential pool, rotated per request
	RequestsPerMinute int      // budget per credential
	MinInterval       time.Duration
	Timeout           time.Duration
	MaxTokens         int
	Temperature       float64
}

// MacroConfig holds macro data provider configuration (BCB SGS series)
type MacroConfig struct {
	BaseURL         string
	InterestSeries  string // Selic
	InflationSeries string // IPCA 12m
	CacheTTL        time.Duration
}

// MentionsConfig holds mention-volume provider configuration
type MentionsConfig struct {
	BaseURL string
	APIKey  string
	Window  string
}

// ReleasesConfig holds investor-relations excerpt configuration.
// URLTemplate contains a single %s placeholder for the ticker; empty disables excerpts.
type ReleasesConfig struct {
	URLTemplate string
	MaxChars    int
}

// PipelineConfig holds ranking pipeline tunables
type PipelineConfig struct {
	Mode               string // strict, incremental
	FundamentalsSource string // csv, postgres
	FundamentalsCSV    string
	SnapshotPath       string
	StrategyFile       string // optional YAML; replaces the tunables below

	// Quant filter
	MinROE        float64
	MinCAGR       float64
	MaxValuation  float64
	MaxCandidates int

	// Qualitative
	QualitativeTTL     time.Duration
	QualitativeWorkers int

	// Sentiment
	SentimentThreshold float64
	SentimentAlpha     float64
	SentimentBaseline  float64

	// Pricing
	TargetReturn float64
	SafetyMargin float64

	// Composite
	EfficiencyWeight    float64
	QualitativeWeight   float64
	HerdRiskPenalty     float64
	DividendTrapPenalty float64
}

// RetryConfig holds the retry policy shared by external collaborators
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      float64
}

// SchedulerConfig holds cron expressions (with seconds field)
type SchedulerConfig struct {
	RankingSchedule string
	RetrySchedule   string
	MacroSchedule   string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	// Try multiple paths for .env file
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Prefix:   getEnv("REDIS_PREFIX", "alpha"),
		},

		LLM: LLMConfig{
			BaseURL:           getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:             getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
			APIKeys:           getEnvAsList("LLM_API_KEYS"),
			RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 20),
			MinInterval:       getEnvAsDuration("LLM_MIN_INTERVAL", "3s"),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", "60s"),
			MaxTokens:         getEnvAsInt("LLM_MAX_TOKENS", 2048),
			Temperature:       getEnvAsFloat("LLM_TEMPERATURE", 0.2),
		},

		Macro: MacroConfig{
			BaseURL:         getEnv("MACRO_BASE_URL", "https://api.bcb.gov.br/dados/serie"),
			InterestSeries:  getEnv("MACRO_INTEREST_SERIES", "432"),
			InflationSeries: getEnv("MACRO_INFLATION_SERIES", "13522"),
			CacheTTL:        getEnvAsDuration("MACRO_CACHE_TTL", "24h"),
		},

		Mentions: MentionsConfig{
			BaseURL: getEnv("MENTIONS_BASE_URL", ""),
			APIKey:  getEnv("MENTIONS_API_KEY", ""),
			Window:  getEnv("MENTIONS_WINDOW", "24h"),
		},

		Releases: ReleasesConfig{
			URLTemplate: getEnv("RELEASES_URL_TEMPLATE", ""),
			MaxChars:    getEnvAsInt("RELEASES_MAX_CHARS", 8000),
		},

		Pipeline: PipelineConfig{
			Mode:               getEnv("PIPELINE_MODE", "incremental"),
			FundamentalsSource: getEnv("FUNDAMENTALS_SOURCE", "csv"),
			FundamentalsCSV:    getEnv("FUNDAMENTALS_CSV", "data/stocks.csv"),
			SnapshotPath:       getEnv("SNAPSHOT_PATH", "data/ranking_snapshot.json"),
			StrategyFile:       getEnv("STRATEGY_FILE", ""),

			MinROE:        getEnvAsFloat("QUANT_MIN_ROE", 15),
			MinCAGR:       getEnvAsFloat("QUANT_MIN_CAGR", 12),
			MaxValuation:  getEnvAsFloat("QUANT_MAX_VALUATION", 15),
			MaxCandidates: getEnvAsInt("QUANT_MAX_CANDIDATES", 15),

			QualitativeTTL:     getEnvAsDuration("QUALITATIVE_TTL", "24h"),
			QualitativeWorkers: getEnvAsInt("QUALITATIVE_WORKERS", 0),

			SentimentThreshold: getEnvAsFloat("SENTIMENT_THRESHOLD", 3.0),
			SentimentAlpha:     getEnvAsFloat("SENTIMENT_ALPHA", 0.1),
			SentimentBaseline:  getEnvAsFloat("SENTIMENT_DEFAULT_BASELINE", 1.0),

			TargetReturn: getEnvAsFloat("PRICE_TARGET_RETURN", 0.05),
			SafetyMargin: getEnvAsFloat("PRICE_SAFETY_MARGIN", 0.15),

			EfficiencyWeight:    getEnvAsFloat("COMPOSITE_EFFICIENCY_WEIGHT", 0.6),
			QualitativeWeight:   getEnvAsFloat("COMPOSITE_QUALITATIVE_WEIGHT", 0.4),
			HerdRiskPenalty:     getEnvAsFloat("COMPOSITE_HERD_PENALTY", 0.8),
			DividendTrapPenalty: getEnvAsFloat("COMPOSITE_TRAP_PENALTY", 0.7),
		},

		Retry: RetryConfig{
			MaxAttempts: getEnvAsInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   getEnvAsDuration("RETRY_BASE_DELAY", "2s"),
			Multiplier:  getEnvAsFloat("RETRY_MULTIPLIER", 2.0),
			MaxDelay:    getEnvAsDuration("RETRY_MAX_DELAY", "30s"),
			Jitter:      getEnvAsFloat("RETRY_JITTER", 0.2),
		},

		Scheduler: SchedulerConfig{
			RankingSchedule: getEnv("SCHEDULE_RANKING", "0 0 19 * * 1-5"),
			RetrySchedule:   getEnv("SCHEDULE_RETRY", "0 */15 * * * *"),
			MacroSchedule:   getEnv("SCHEDULE_MACRO", "0 30 18 * * 1-5"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if configuration values are consistent
func (c *Config) validate() error {
	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Pipeline.Mode != "strict" && c.Pipeline.Mode != "incremental" {
		return fmt.Errorf("PIPELINE_MODE must be one of: strict, incremental")
	}

	switch c.Pipeline.FundamentalsSource {
	case "csv":
	case "postgres":
		if !c.Database.Enabled() {
			return fmt.Errorf("FUNDAMENTALS_SOURCE=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("FUNDAMENTALS_SOURCE must be one of: csv, postgres")
	}

	if c.LLM.RequestsPerMinute <= 0 {
		return fmt.Errorf("LLM_REQUESTS_PER_MINUTE must be positive")
	}

	if c.Pipeline.SentimentAlpha <= 0 || c.Pipeline.SentimentAlpha > 1 {
		return fmt.Errorf("SENTIMENT_ALPHA must be in (0, 1]")
	}

	if c.Pipeline.SentimentThreshold <= 0 {
		return fmt.Errorf("SENTIMENT_THRESHOLD must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

// getEnvAsList splits a comma-separated value, dropping blanks
func getEnvAsList(key string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	return values
}

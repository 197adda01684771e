package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv    string
	Port      string
	RedisURL  string
	LogLevel  string
	LogFormat string

	// Content source credentials. AuthToken/CSRFToken form the explicit
	// credential blob; Username/Password drive interactive login.
	SourceBaseURL    string
	SourceUsername   string
	SourcePassword   string
	SourceTOTPSecret string
	SourceAuthToken  string
	SourceCSRFToken  string
	SessionDir       string

	// Classification oracle.
	OracleBaseURL string
	OracleAPIKey  string
	OracleModel   string

	// Pipeline targets.
	TargetSubjects []string
	PrimaryTerms   []string
	ContextTerms   []string
	IncludeTrends  bool

	PipelineInterval time.Duration
	FetchCount       int
}

func Load() (*Config, error) {
	interval, err := getDuration("PIPELINE_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	fetchCount, err := getInt("FETCH_COUNT", 20)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		RedisURL:  getEnv("REDIS_URL", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		SourceBaseURL:    getEnv("SOURCE_BASE_URL", "https://x.com"),
		SourceUsername:   getEnv("SOURCE_USERNAME", ""),
		SourcePassword:   getEnv("SOURCE_PASSWORD", ""),
		SourceTOTPSecret: getEnv("SOURCE_TOTP_SECRET", ""),
		SourceAuthToken:  getEnv("SOURCE_AUTH_TOKEN", ""),
		SourceCSRFToken:  getEnv("SOURCE_CSRF_TOKEN", ""),
		SessionDir:       getEnv("SESSION_DIR", ""),

		OracleBaseURL: getEnv("ORACLE_BASE_URL", "https://api.openai.com"),
		OracleAPIKey:  getEnv("ORACLE_API_KEY", ""),
		OracleModel:   getEnv("ORACLE_MODEL", "gpt-4o-mini"),

		TargetSubjects: getList("TARGET_SUBJECTS", nil),
		PrimaryTerms:   getList("PRIMARY_TERMS", []string{"presale", "memecoin", "airdrop"}),
		ContextTerms:   getList("CONTEXT_TERMS", []string{"crypto", "solana"}),
		IncludeTrends:  getBool("INCLUDE_TRENDS", false),

		PipelineInterval: interval,
		FetchCount:       fetchCount,
	}

	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.OracleAPIKey == "" {
		return nil, fmt.Errorf("ORACLE_API_KEY is required")
	}
	if cfg.SourceUsername == "" && cfg.SourceAuthToken == "" {
		return nil, fmt.Errorf("SOURCE_USERNAME or SOURCE_AUTH_TOKEN is required")
	}
	if len(cfg.PrimaryTerms) == 0 {
		return nil, fmt.Errorf("PRIMARY_TERMS must not be empty")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getList(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getBool(key string, defaultValue bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return v, nil
}

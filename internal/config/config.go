package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/khirohas/receipt-auto-input-agent-v3/internal/llm"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	AppPort string
	AppURL  string

	// Database
	DBHost            string
	DBPort            string
	DBDatabase        string
	DBUsername        string
	DBPassword        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret       string
	JWTAccessExpire time.Duration

	// Operator login
	AdminUsername     string
	AdminPasswordHash string

	// Upload
	UploadMaxSize int
	UploadTTL     time.Duration

	// Accounting master
	AccountMasterPath string

	// LLM
	LLMProvider           string
	ProviderFallbackOrder []string
	ExtractionConcurrency int
	LLMRetryMax           int
	Providers             map[string]llm.ProviderConfig

	// Asynq
	AsynqRedisAddr     string
	AsynqRedisPassword string
	AsynqRedisDB       int
	WorkerConcurrency  int
}

func Load() (*Config, error) {
	// Load .env file if exists
	// Try to load from current dir first, then parent dirs
	_ = godotenv.Load()
	_ = godotenv.Load("../../.env") // For when running from cmd/web or cmd/worker

	cfg := &Config{
		AppName: getEnv("APP_NAME", "Receipt Auto Input Agent"),
		AppEnv:  getEnv("APP_ENV", "development"),
		AppPort: getEnv("APP_PORT", "8080"),
		AppURL:  getEnv("APP_URL", "http://localhost:8080"),

		DBHost:            getEnv("DB_HOST", "127.0.0.1"),
		DBPort:            getEnv("DB_PORT", "3306"),
		DBDatabase:        getEnv("DB_DATABASE", "receipts"),
		DBUsername:        getEnv("DB_USERNAME", "receipts"),
		DBPassword:        getEnv("DB_PASSWORD", ""),
		DBMaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),

		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		JWTSecret:       getEnv("JWT_SECRET", "change-this-secret-key"),
		JWTAccessExpire: getEnvAsDuration("JWT_ACCESS_EXPIRE", 24*time.Hour),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		UploadMaxSize: getEnvAsInt("UPLOAD_MAX_SIZE", 20971520), // 20MB
		UploadTTL:     getEnvAsDuration("UPLOAD_TTL", 6*time.Hour),

		AccountMasterPath: getEnv("ACCOUNT_MASTER_PATH", "./data/account_master.json"),

		LLMProvider:           strings.ToLower(getEnv("LLM_PROVIDER", llm.ProviderGemini)),
		ProviderFallbackOrder: getEnvAsList("PROVIDER_FALLBACK_ORDER", []string{llm.ProviderGemini, llm.ProviderOpenAI, llm.ProviderClaude}),
		ExtractionConcurrency: getEnvAsInt("EXTRACTION_CONCURRENCY", 3),
		LLMRetryMax:           getEnvAsInt("LLM_RETRY_MAX", 1),

		AsynqRedisAddr:     getEnv("ASYNQ_REDIS_ADDR", "127.0.0.1:6379"),
		AsynqRedisPassword: getEnv("ASYNQ_REDIS_PASSWORD", ""),
		AsynqRedisDB:       getEnvAsInt("ASYNQ_REDIS_DB", 0),
		WorkerConcurrency:  getEnvAsInt("WORKER_CONCURRENCY", 2),
	}

	cfg.Providers = map[string]llm.ProviderConfig{
		llm.ProviderGemini: loadProviderConfig("GEMINI", "gemini-2.0-flash"),
		llm.ProviderOpenAI: loadProviderConfig("OPENAI", "gpt-4o-mini"),
		llm.ProviderClaude: loadProviderConfig("ANTHROPIC", "claude-sonnet-4-5-20250929"),
	}

	if cfg.ExtractionConcurrency < 1 {
		return nil, fmt.Errorf("EXTRACTION_CONCURRENCY must be at least 1, got %d", cfg.ExtractionConcurrency)
	}

	return cfg, nil
}

// loadProviderConfig reads the <PREFIX>_API_KEY family of variables.
func loadProviderConfig(prefix, defaultModel string) llm.ProviderConfig {
	return llm.ProviderConfig{
		APIKey:      getEnv(prefix+"_API_KEY", ""),
		Model:       getEnv(prefix+"_MODEL", defaultModel),
		MaxTokens:   getEnvAsInt(prefix+"_MAX_TOKENS", 4096),
		Temperature: getEnvAsFloat(prefix+"_TEMPERATURE", 0.1),
		Timeout:     getEnvAsDuration(prefix+"_TIMEOUT", 60*time.Second),
	}
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&loc=Local",
		c.DBUsername,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBDatabase,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

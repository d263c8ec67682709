package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"workflow-agent-be/pkg/retry"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ai       AIConfig
	Agent    AgentConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string // empty disables event publishing
	RedisURL           string // empty selects the in-process cache
	JWTSecret          string // empty leaves the workflow routes open
	OtelEnabled        bool
	OtelEndpoint       string
	ServiceName        string
}

type DatabaseConfig struct {
	Connection   string
	MaxIdleConns int
	MaxOpenConns int
	LogLevel     string
}

type AIConfig struct {
	LLMProvider        string // "ollama" or "huggingface"
	LLMModel           string
	LLMBaseURL         string
	LLMAPIKey          string
	LLMTimeout         time.Duration
	EmbeddingProvider  string // "ollama" or "jina"
	EmbeddingModel     string
	EmbeddingBaseURL   string
	EmbeddingAPIKey    string
	RetrievalTopK      int
	RetrievalThreshold float64
}

// RetryConfig is the per-stage retry budget.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Timeout     time.Duration
}

type AgentConfig struct {
	CacheTTL       time.Duration
	HistoryWindow  int
	Classification RetryConfig
	Generation     RetryConfig
	Retrieval      RetryConfig
	Store          RetryConfig
	Cache          RetryConfig
}

// Policy builds the retry policy for a stage.
func (r RetryConfig) Policy(stage string) retry.Policy {
	return retry.Policy{
		Stage:       stage,
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.BaseDelay / 4,
		Timeout:     r.Timeout,
	}
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Environment, "production")
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			JWTSecret:          getEnv("JWT_SECRET", ""),
			OtelEnabled:        getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:        getEnv("OTEL_SERVICE_NAME", "workflow-agent-be"),
		},
		Database: DatabaseConfig{
			Connection:   getEnv("DB_CONNECTION_STRING", ""),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			LogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		},
		Ai: AIConfig{
			LLMProvider:        getEnv("LLM_PROVIDER", "ollama"),
			LLMModel:           getEnv("LLM_MODEL", "llama3"),
			LLMBaseURL:         getEnv("LLM_BASE_URL", "http://localhost:11434"),
			LLMAPIKey:          getEnv("LLM_API_KEY", ""),
			LLMTimeout:         getEnvAsDuration("LLM_TIMEOUT", 60*time.Second),
			EmbeddingProvider:  getEnv("EMBEDDING_PROVIDER", "ollama"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingBaseURL:   getEnv("EMBEDDING_BASE_URL", ""),
			EmbeddingAPIKey:    getEnv("EMBEDDING_API_KEY", ""),
			RetrievalTopK:      getEnvAsInt("RETRIEVAL_TOP_K", 3),
			RetrievalThreshold: getEnvAsFloat("RETRIEVAL_THRESHOLD", 0.3),
		},
		Agent: AgentConfig{
			CacheTTL:       getEnvAsDuration("CACHE_TTL", 24*time.Hour),
			HistoryWindow:  getEnvAsInt("HISTORY_WINDOW", 10),
			Classification: loadRetry("CLASSIFICATION", 3, time.Second, 4*time.Second, 30*time.Second),
			Generation:     loadRetry("GENERATION", 3, time.Second, 4*time.Second, 60*time.Second),
			Retrieval:      loadRetry("RETRIEVAL", 2, 200*time.Millisecond, time.Second, 10*time.Second),
			Store:          loadRetry("STORE", 3, 100*time.Millisecond, time.Second, 5*time.Second),
			Cache:          loadRetry("CACHE", 2, 50*time.Millisecond, 200*time.Millisecond, time.Second),
		},
	}
}

// loadRetry reads <STAGE>_MAX_ATTEMPTS, <STAGE>_BASE_DELAY, <STAGE>_MAX_DELAY
// and <STAGE>_TIMEOUT.
func loadRetry(stage string, attempts int, base, max, timeout time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts: getEnvAsInt(stage+"_MAX_ATTEMPTS", attempts),
		BaseDelay:   getEnvAsDuration(stage+"_BASE_DELAY", base),
		MaxDelay:    getEnvAsDuration(stage+"_MAX_DELAY", max),
		Timeout:     getEnvAsDuration(stage+"_TIMEOUT", timeout),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

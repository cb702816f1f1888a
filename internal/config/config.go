package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OIDC      OIDCConfig
	RateLimit RateLimitConfig
	Groq      GroqConfig
	OpenAI    OpenAIConfig
	Evaluator EvaluatorConfig
	Storage   StorageConfig
	Pipeline  PipelineConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type OIDCConfig struct {
	Issuer   string
	ClientID string
}

type RateLimitConfig struct {
	StartPerHour int
	StatusPerMin int
}

// GroqConfig configures the primary text-generation backend.
type GroqConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIConfig configures the fallback text-generation backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// EvaluatorConfig points at the external quality-evaluator service.
type EvaluatorConfig struct {
	ServiceURL string
	Timeout    int // seconds
}

type StorageConfig struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// PipelineConfig tunes the multi-pass orchestrator.
type PipelineConfig struct {
	SequentialBatch int     // batch size for order-dependent passes
	ParallelBatch   int     // batch size for independent-section passes
	MaxRetries      int     // validation retries per section per pass
	ListBudget      float64 // max fraction of sections carrying a list
	TableBudget     float64 // max fraction of sections carrying a table
	MinSectionWords int
	BlockThreshold  int // gate: at/below this score the job fails
	PassThreshold   int // gate: at/above this score publishes without review
	PenaltyCap      int // max cross-document consistency penalty
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("GROQ_API_KEY")
	readSecret("OPENAI_API_KEY")
	readSecret("STORAGE_ACCOUNT_ID")
	readSecret("STORAGE_ACCESS_KEY_ID")
	readSecret("STORAGE_SECRET_ACCESS_KEY")
	readSecret("OIDC_CLIENT_ID")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("oidc.issuer", "OIDC_ISSUER")
	_ = viper.BindEnv("oidc.client_id", "OIDC_CLIENT_ID")
	_ = viper.BindEnv("groq.api_key", "GROQ_API_KEY")
	_ = viper.BindEnv("groq.base_url", "GROQ_BASE_URL")
	_ = viper.BindEnv("groq.model", "GROQ_MODEL")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.model", "OPENAI_MODEL")
	_ = viper.BindEnv("evaluator.service_url", "EVALUATOR_SERVICE_URL")
	_ = viper.BindEnv("evaluator.timeout", "EVALUATOR_TIMEOUT")
	_ = viper.BindEnv("storage.account_id", "STORAGE_ACCOUNT_ID")
	_ = viper.BindEnv("storage.access_key_id", "STORAGE_ACCESS_KEY_ID")
	_ = viper.BindEnv("storage.secret_access_key", "STORAGE_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("storage.bucket_name", "STORAGE_BUCKET_NAME")
	_ = viper.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	_ = viper.BindEnv("pipeline.sequential_batch", "PIPELINE_SEQUENTIAL_BATCH")
	_ = viper.BindEnv("pipeline.parallel_batch", "PIPELINE_PARALLEL_BATCH")
	_ = viper.BindEnv("pipeline.max_retries", "PIPELINE_MAX_RETRIES")
	_ = viper.BindEnv("pipeline.list_budget", "PIPELINE_LIST_BUDGET")
	_ = viper.BindEnv("pipeline.table_budget", "PIPELINE_TABLE_BUDGET")
	_ = viper.BindEnv("pipeline.min_section_words", "PIPELINE_MIN_SECTION_WORDS")
	_ = viper.BindEnv("pipeline.block_threshold", "PIPELINE_BLOCK_THRESHOLD")
	_ = viper.BindEnv("pipeline.pass_threshold", "PIPELINE_PASS_THRESHOLD")
	_ = viper.BindEnv("pipeline.penalty_cap", "PIPELINE_PENALTY_CAP")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.start_per_hour", 10)
	viper.SetDefault("ratelimit.status_per_min", 120)

	// Groq defaults
	viper.SetDefault("groq.base_url", "https://api.groq.com/openai/v1")
	viper.SetDefault("groq.model", "llama-3.3-70b-versatile")

	// OpenAI fallback defaults
	viper.SetDefault("openai.model", "gpt-4o-mini")

	// Evaluator service defaults
	viper.SetDefault("evaluator.service_url", "http://localhost:8086")
	viper.SetDefault("evaluator.timeout", 60)

	// Pipeline defaults
	viper.SetDefault("pipeline.sequential_batch", 1)
	viper.SetDefault("pipeline.parallel_batch", 3)
	viper.SetDefault("pipeline.max_retries", 3)
	viper.SetDefault("pipeline.list_budget", 0.4)
	viper.SetDefault("pipeline.table_budget", 0.15)
	viper.SetDefault("pipeline.min_section_words", 60)
	viper.SetDefault("pipeline.block_threshold", 55)
	viper.SetDefault("pipeline.pass_threshold", 75)
	viper.SetDefault("pipeline.penalty_cap", 10)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		OIDC: OIDCConfig{
			Issuer:   viper.GetString("oidc.issuer"),
			ClientID: viper.GetString("oidc.client_id"),
		},
		RateLimit: RateLimitConfig{
			StartPerHour: viper.GetInt("ratelimit.start_per_hour"),
			StatusPerMin: viper.GetInt("ratelimit.status_per_min"),
		},
		Groq: GroqConfig{
			APIKey:  viper.GetString("groq.api_key"),
			BaseURL: viper.GetString("groq.base_url"),
			Model:   viper.GetString("groq.model"),
		},
		OpenAI: OpenAIConfig{
			APIKey:  viper.GetString("openai.api_key"),
			BaseURL: viper.GetString("openai.base_url"),
			Model:   viper.GetString("openai.model"),
		},
		Evaluator: EvaluatorConfig{
			ServiceURL: viper.GetString("evaluator.service_url"),
			Timeout:    viper.GetInt("evaluator.timeout"),
		},
		Storage: StorageConfig{
			AccountID:       viper.GetString("storage.account_id"),
			AccessKeyID:     viper.GetString("storage.access_key_id"),
			SecretAccessKey: viper.GetString("storage.secret_access_key"),
			BucketName:      viper.GetString("storage.bucket_name"),
			PublicURL:       viper.GetString("storage.public_url"),
		},
		Pipeline: PipelineConfig{
			SequentialBatch: viper.GetInt("pipeline.sequential_batch"),
			ParallelBatch:   viper.GetInt("pipeline.parallel_batch"),
			MaxRetries:      viper.GetInt("pipeline.max_retries"),
			ListBudget:      viper.GetFloat64("pipeline.list_budget"),
			TableBudget:     viper.GetFloat64("pipeline.table_budget"),
			MinSectionWords: viper.GetInt("pipeline.min_section_words"),
			BlockThreshold:  viper.GetInt("pipeline.block_threshold"),
			PassThreshold:   viper.GetInt("pipeline.pass_threshold"),
			PenaltyCap:      viper.GetInt("pipeline.penalty_cap"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}

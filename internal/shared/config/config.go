package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultMaxConcurrency        = 3
	defaultRunTimeoutSeconds     = 180
	defaultConjointPerDocSeconds = 180
	defaultOpenAITimeoutSeconds  = 120
	defaultStartsPerMinute       = 10
	defaultStartBurst            = 5
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	DatabaseURL     string
	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	LLMProvider     string
	LLMModel        string
	OpenAIAPIKey    string
	OpenAITimeout   time.Duration
	SQSQueueURL     string
	RedisURL        string

	// MaxConcurrentAnalyses caps the pipelines executing stages at any instant.
	MaxConcurrentAnalyses int
	// RunTimeout is the wall-clock budget for a single-document run and for report regeneration.
	RunTimeout time.Duration
	// ConjointTimeoutPerDocument is multiplied by the number of targets in a conjoint run.
	ConjointTimeoutPerDocument time.Duration
	// StartsPerMinute and StartBurst rate limit analysis-start requests per client.
	StartsPerMinute int
	StartBurst      int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience; missing files are fine.
	for _, path := range []string{".env", "cmd/.env"} {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				log.Printf("config: load %s: %v", path, err)
			}
		}
	}

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:                       getEnv("PORT", "8080"),
		Env:                        env,
		DatabaseURL:                dbURL,
		ObjectStoreType:            normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:              getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:                  getEnv("AWS_REGION", ""),
		S3Bucket:                   getEnv("S3_BUCKET", ""),
		S3Prefix:                   getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:                getEnv("SSE_KMS_KEY_ID", ""),
		LLMProvider:                strings.ToLower(getEnv("LLM_PROVIDER", "placeholder")),
		LLMModel:                   getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:               os.Getenv("OPENAI_API_KEY"),
		OpenAITimeout:              getEnvSeconds("OPENAI_TIMEOUT_SECONDS", defaultOpenAITimeoutSeconds),
		SQSQueueURL:                strings.TrimSpace(os.Getenv("RA_SQS_QUEUE_URL")),
		RedisURL:                   strings.TrimSpace(os.Getenv("REDIS_URL")),
		MaxConcurrentAnalyses:      getEnvInt("ANALYSIS_MAX_CONCURRENCY", defaultMaxConcurrency),
		RunTimeout:                 getEnvSeconds("ANALYSIS_TIMEOUT_SECONDS", defaultRunTimeoutSeconds),
		ConjointTimeoutPerDocument: getEnvSeconds("ANALYSIS_CONJOINT_TIMEOUT_PER_DOC_SECONDS", defaultConjointPerDocSeconds),
		StartsPerMinute:            getEnvInt("ANALYSIS_STARTS_PER_MINUTE", defaultStartsPerMinute),
		StartBurst:                 getEnvInt("ANALYSIS_START_BURST", defaultStartBurst),
	}
}

// IsDevLike reports whether in-memory fallbacks are acceptable.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid positive int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvSeconds(key string, def int) time.Duration {
	return time.Duration(getEnvInt(key, def)) * time.Second
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

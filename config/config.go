package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port     string
	LogLevel string

	MongoURI    string
	MongoDB     string
	RedisAddr   string
	PostgresURI string

	JWTSecret string
	JWTTTL    time.Duration

	LLM     LLMConfig
	Uploads UploadConfig

	RoadmapCacheTTL time.Duration
	CORSOrigins     []string
}

type LLMConfig struct {
	Provider          string // openai|vertex
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	VertexProject     string
	VertexLocation    string
	VertexModel       string
	GenerationTimeout time.Duration
}

type UploadConfig struct {
	Dir             string
	Bucket          string // when set, uploads are staged in GCS
	CredentialsFile string
	MaxBytes        int64
}

// Load reads configuration from the environment. Call godotenv.Load first
// to pick up a local .env file.
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "careerpath"),
		RedisAddr:   firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		PostgresURI: getEnv("POSTGRES_URI", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvAsDuration("JWT_TTL", 24*time.Hour),

		LLM: LLMConfig{
			Provider:          strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
			OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-3.5-turbo-0125"),
			VertexProject:     getEnv("VERTEX_PROJECT", ""),
			VertexLocation:    getEnv("VERTEX_LOCATION", "us-central1"),
			VertexModel:       getEnv("VERTEX_MODEL", "gemini-1.5-flash"),
			GenerationTimeout: getEnvAsDuration("GENERATION_TIMEOUT", 60*time.Second),
		},
		Uploads: UploadConfig{
			Dir:             getEnv("UPLOAD_DIR", ""),
			Bucket:          getEnv("UPLOAD_BUCKET", ""),
			CredentialsFile: getEnv("GCS_CREDENTIALS_FILE", ""),
			MaxBytes:        getEnvAsInt64("MAX_UPLOAD_BYTES", 10<<20),
		},

		RoadmapCacheTTL: getEnvAsDuration("ROADMAP_CACHE_TTL", 10*time.Minute),
		CORSOrigins:     getEnvAsList("CORS_ORIGINS", []string{"*"}),
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.MongoURI == "" {
		errs = append(errs, errors.New("MONGO_URI environment variable is not set"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET environment variable is not set"))
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable is not set"))
		}
	case "vertex":
		if c.LLM.VertexProject == "" {
			errs = append(errs, errors.New("VERTEX_PROJECT environment variable is not set"))
		}
	default:
		errs = append(errs, errors.New("LLM_PROVIDER must be openai or vertex"))
	}
	if c.LLM.GenerationTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT must be positive"))
	}
	if c.Uploads.MaxBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := getEnv(k, ""); v != "" {
			return v
		}
	}
	return ""
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

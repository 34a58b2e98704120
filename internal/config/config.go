package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	AppEnv     string
	CORSOrigin string
	DBDSN      string

	// credentials
	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	LoginMaxFailures int
	LoginLockout     time.Duration

	// AI provider
	AIProvider        string
	AITimeout         time.Duration
	OllamaBaseURL     string
	OllamaModel       string
	OpenRouterBaseURL string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	OpenAIBaseURL     string
	OpenAIAPIKey      string
	OpenAIModel       string

	// rabbitMQ
	RabbitURL         string
	RabbitQueue       string
	WorkerConcurrency int
}

// Production reports whether cookies must carry the Secure flag.
func (c Config) Production() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

func Load() Config {
	// .env is optional; real env vars win
	_ = godotenv.Load()

	// DSN demo：
	// app:apppass@tcp(127.0.0.1:3306)/prompt_history?charset=utf8mb4&parseTime=true&loc=Local
	// file:prompt_history.db  (sqlite)
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=Local",
			"app", "apppass", "127.0.0.1", "3306", "prompt_history",
		)
	}

	accessSecret := getenv("JWT_SECRET", "dev-secret-change-me")
	// never fall back to the access secret: the two credential classes must not share a key
	refreshSecret := getenv("REFRESH_TOKEN_SECRET", "dev-refresh-secret-change-me")

	return Config{
		Port:       getenv("PORT", "4000"),
		AppEnv:     getenv("APP_ENV", "development"),
		CORSOrigin: getenv("CORS_ORIGIN", "http://localhost:5173"),
		DBDSN:      dsn,

		AccessTokenSecret:  accessSecret,
		RefreshTokenSecret: refreshSecret,
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:    getDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getInt("REDIS_DB", 0),
		LoginMaxFailures: getInt("LOGIN_MAX_FAILURES", 5),
		LoginLockout:     getDuration("LOGIN_LOCKOUT", 15*time.Minute),

		AIProvider:        strings.ToLower(getenv("AI_PROVIDER", "ollama")),
		AITimeout:         getDuration("AI_TIMEOUT", 60*time.Second),
		OllamaBaseURL:     getenv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:       getenv("OLLAMA_MODEL", "llama3:latest"),
		OpenRouterBaseURL: getenv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:   getenv("OPENROUTER_MODEL", "openrouter/auto"),
		OpenRouterSiteURL: os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName: os.Getenv("OPENROUTER_APP_NAME"),
		OpenAIBaseURL:     getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:       getenv("OPENAI_MODEL", "gpt-3.5-turbo"),

		RabbitURL:         os.Getenv("RABBIT_URL"),
		RabbitQueue:       getenv("RABBIT_QUEUE", "history_events"),
		WorkerConcurrency: clamp(getInt("WORKER_CONCURRENCY", 2), 1, 50),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// getDuration accepts Go durations ("15m") or plain seconds ("900").
func getDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

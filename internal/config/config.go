package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Session  SessionConfig
	OpenAI   OpenAIConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
	// PublicHost is the host clients reach the service on, used for
	// same-origin checks. Empty means trust the request Host header.
	PublicHost string
}

type AuthConfig struct {
	// Failed attempts within LockoutWindow before an identifier is locked out.
	LockoutThreshold int
	LockoutWindow    time.Duration
	CleanupInterval  time.Duration
}

type SessionConfig struct {
	Backend       string // "memory" or "redis"
	CookieName    string
	TTL           time.Duration
	Secure        bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type OpenAIConfig struct {
	APIKey       string
	Model        string
	BaseURL      string
	SystemPrompt string
	Temperature  float64
}

const defaultSystemPrompt = "You are Weightlifting Assistant, an encouraging but precise strength " +
	"training coach. Answer only questions related to training, exercise, recovery, and nutrition " +
	"for performance. Keep responses under 180 words unless detailed programming is required."

func Load() (*Config, error) {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "liftchat"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
		},
		Server: ServerConfig{
			Port:       getEnv("PORT", "8080"),
			Env:        env,
			LogLevel:   getEnv("LOG_LEVEL", "info"),
			PublicHost: getEnv("PUBLIC_HOST", ""),
		},
		Auth: AuthConfig{
			LockoutThreshold: getEnvAsInt("LOCKOUT_THRESHOLD", 3),
			LockoutWindow:    getEnvAsDuration("LOCKOUT_WINDOW", 60*time.Minute),
			CleanupInterval:  getEnvAsDuration("ATTEMPT_CLEANUP_INTERVAL", 1*time.Hour),
		},
		Session: SessionConfig{
			Backend:       getEnv("SESSION_BACKEND", "memory"),
			CookieName:    getEnv("SESSION_COOKIE_NAME", "sid"),
			TTL:           getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			Secure:        env == "production",
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		OpenAI: OpenAIConfig{
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			SystemPrompt: getEnv("SYSTEM_PROMPT", defaultSystemPrompt),
			Temperature:  getEnvAsFloat("OPENAI_TEMPERATURE", 0.3),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}

	if cfg.OpenAI.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	if cfg.Auth.LockoutThreshold < 1 {
		return nil, fmt.Errorf("LOCKOUT_THRESHOLD must be at least 1")
	}

	switch cfg.Session.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("SESSION_BACKEND must be \"memory\" or \"redis\", got %q", cfg.Session.Backend)
	}

	return cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}

// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DefaultConnectionTemplate = "Hi {first_name}, I noticed your work at {company}. Would love to connect and exchange ideas about the industry."
	defaultAgentAPIBase       = "https://api.phantombuster.com/api/v2"
	defaultLLMAPIURL          = "https://api.deepseek.com/v1/chat/completions"
	defaultLLMModel           = "deepseek-chat"
)

type Config struct {
	Env      string
	HTTPAddr string
	LogLevel string

	DatabaseURL string

	AMQPURL   string
	AMQPQueue string

	RedisURL    string
	PassLockTTL time.Duration

	AgentAPIBase              string
	AgentAPIKey               string
	AgentID                   string
	DefaultConnectionTemplate string

	LLMAPIURL string
	LLMAPIKey string
	LLMModel  string

	MaxFollowupAttempts int
	FollowupDelay       time.Duration
	SyncInterval        time.Duration
}

// Load reads .env (if any) and the process environment.
func Load(log logrus.FieldLogger) *Config {
	if err := godotenv.Load(); err != nil && log != nil {
		log.Debug("⚠️ No .env file found, relying on OS environment variables")
	}

	return &Config{
		Env:      GetEnv("APP_ENV", "production"),
		HTTPAddr: GetEnv("HTTP_ADDR", ":8080"),
		LogLevel: GetEnv("LOG_LEVEL", "info"),

		DatabaseURL: databaseURL(),

		AMQPURL:   GetEnv("AMQP_URL", ""),
		AMQPQueue: GetEnv("AMQP_QUEUE", "outreach_jobs"),

		RedisURL:    GetEnv("REDIS_URL", ""),
		PassLockTTL: GetEnvDuration("PASS_LOCK_TTL", 10*time.Minute),

		AgentAPIBase:              GetEnv("PHANTOMBUSTER_API_BASE", defaultAgentAPIBase),
		AgentAPIKey:               GetEnv("PHANTOMBUSTER_API_KEY", ""),
		AgentID:                   GetEnv("PHANTOM_ID", ""),
		DefaultConnectionTemplate: GetEnv("DEFAULT_CONNECTION_TEMPLATE", DefaultConnectionTemplate),

		LLMAPIURL: GetEnv("DEEPSEEK_API_URL", defaultLLMAPIURL),
		LLMAPIKey: GetEnv("DEEPSEEK_API_KEY", ""),
		LLMModel:  GetEnv("DEEPSEEK_MODEL", defaultLLMModel),

		MaxFollowupAttempts: GetEnvInt("MAX_FOLLOWUP_ATTEMPTS", 3),
		FollowupDelay:       time.Duration(GetEnvInt("FOLLOWUP_DELAY_HOURS", 24)) * time.Hour,
		SyncInterval:        GetEnvDuration("SYNC_INTERVAL", time.Hour),
	}
}

// Validate lists the integrations that cannot work with the current settings.
// Missing credentials only disable those integrations.
func (c *Config) Validate() []string {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL (or DB_HOST/DB_NAME)")
	}
	if c.AgentAPIKey == "" {
		missing = append(missing, "PHANTOMBUSTER_API_KEY")
	}
	if c.AgentID == "" {
		missing = append(missing, "PHANTOM_ID")
	}
	if c.LLMAPIKey == "" {
		missing = append(missing, "DEEPSEEK_API_KEY")
	}
	if c.MaxFollowupAttempts < 1 {
		missing = append(missing, "MAX_FOLLOWUP_ATTEMPTS must be positive (falling back to 3)")
	}
	return missing
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func databaseURL() string {
	if url := GetEnv("DATABASE_URL", ""); url != "" {
		return url
	}
	host := os.Getenv("DB_HOST")
	name := os.Getenv("DB_NAME")
	if host == "" || name == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), host, GetEnv("DB_PORT", "5432"), name, GetEnv("DB_SSLMODE", "disable"),
	)
}

func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func GetEnvInt(key string, defaultValue int) int {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return defaultValue
	}
	return parsed
}

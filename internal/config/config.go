package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/repairdesk/repair-desk/internal/domain"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App         AppConfig
	Postgres    PostgresConfig
	Redis       RedisConfig
	Logger      LoggerConfig
	Auth        AuthConfig
	Chat        ChatConfig
	Access      AccessConfig
	Intake      IntakeConfig
	Technicians []domain.TechnicianProfile
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	MigrationsDir  string
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines staff API token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
}

// ChatConfig points at the chat bot endpoint used for all outbound messages.
type ChatConfig struct {
	BotToken           string
	APIBaseURL         string
	WebhookSecret      string
	StaffChatID        string
	SendTimeoutSeconds int
}

// AccessConfig lists the chat identities holding elevated privileges.
type AccessConfig struct {
	AdminIDs []string
	StaffIDs []string
}

// IntakeConfig tunes the conversational ticket wizard.
type IntakeConfig struct {
	SessionStore           string
	SessionIdleTimeoutMins int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	roster, err := ParseRoster(os.Getenv("TECHNICIAN_ROSTER"))
	if err != nil {
		return nil, fmt.Errorf("invalid TECHNICIAN_ROSTER: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "repair-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			MigrationsDir:  getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
		},
		Chat: ChatConfig{
			BotToken:           os.Getenv("CHAT_BOT_TOKEN"),
			APIBaseURL:         getEnv("CHAT_API_BASE_URL", "https://api.telegram.org"),
			WebhookSecret:      os.Getenv("CHAT_WEBHOOK_SECRET"),
			StaffChatID:        os.Getenv("CHAT_STAFF_CHAT_ID"),
			SendTimeoutSeconds: getEnvAsInt("CHAT_SEND_TIMEOUT_SECONDS", 0),
		},
		Access: AccessConfig{
			AdminIDs: getEnvAsList("ACCESS_ADMIN_IDS"),
			StaffIDs: getEnvAsList("ACCESS_STAFF_IDS"),
		},
		Intake: IntakeConfig{
			SessionStore:           getEnv("INTAKE_SESSION_STORE", "redis"),
			SessionIdleTimeoutMins: getEnvAsInt("INTAKE_SESSION_IDLE_MINUTES", 0),
		},
		Technicians: roster,
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SendTimeout returns the per-message send timeout; zero means none.
func (c ChatConfig) SendTimeout() time.Duration {
	if c.SendTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.SendTimeoutSeconds) * time.Second
}

// IdleTimeout returns how long an untouched intake session survives; zero means forever.
func (i IntakeConfig) IdleTimeout() time.Duration {
	if i.SessionIdleTimeoutMins <= 0 {
		return 0
	}
	return time.Duration(i.SessionIdleTimeoutMins) * time.Minute
}

// ParseRoster reads "externalID|Name|Specialization" entries separated by ";".
func ParseRoster(raw string) ([]domain.TechnicianProfile, error) {
	var roster []domain.TechnicianProfile
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 2 {
			return nil, fmt.Errorf("entry %q: want externalID|Name[|Specialization]", entry)
		}
		profile := domain.TechnicianProfile{
			ExternalID: strings.TrimSpace(parts[0]),
			Name:       strings.TrimSpace(parts[1]),
		}
		if len(parts) > 2 {
			profile.Specialization = strings.TrimSpace(parts[2])
		}
		if profile.ExternalID == "" || profile.Name == "" {
			return nil, fmt.Errorf("entry %q: external id and name required", entry)
		}
		roster = append(roster, profile)
	}
	return roster, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		part = strings.Trim(strings.TrimSpace(part), "[]")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Dispatch     DispatchConfig
	Autonomy     AutonomyConfig
	Tracing      TracingConfig
	Alerts       AlertsConfig
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
	DSN             string
	MaxConns        int32
	MinConns        int32
	RunMigrations   bool
	MigrationsDir   string
	ConnMaxIdleSec  int32
	ConnMaxLifeSec  int32
	// LockTimeoutMs bounds how long a command waits for a ticket or scope lock.
	LockTimeoutMs   int
	ApplicationName string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr                  string
	Password              string
	DB                    int
	Enabled               bool
	IdempotencyTTLMinutes int
	DialTimeoutSeconds    int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	// Format is json or console.
	Format string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	Issuer                string
	AccessTokenTTLMinutes int
	RequireToken          bool
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
}

// DispatchConfig holds the policy, template and SLA settings.
type DispatchConfig struct {
	PolicyFile                string
	TemplatesFile             string
	SeedFile                  string
	SLAEmergencyMinutes       int
	SLAUrgentMinutes          int
	SLARoutineMinutes         int
	SLADefaultMinutes         int
	SLAWarningMinutes         int
	IntakeConfidenceThreshold float64
}

// AutonomyConfig seeds autonomy decisions when no history exists.
type AutonomyConfig struct {
	GlobalPaused        bool
	PausedIncidentTypes []string
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool
	Exporter    string
	Endpoint    string
	Insecure    bool
	SampleRatio float64
}

// AlertsConfig holds alert thresholds.
type AlertsConfig struct {
	ErrorRatePercent           int
	MinRequests                int
	IdempotencyConflicts       int
	DispatchWithoutSnapshotMax int
	SLABreaches                int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	confidence, err := strconv.ParseFloat(getEnv("DISPATCH_INTAKE_CONFIDENCE_THRESHOLD", "0.85"), 64)
	if err != nil || confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("invalid DISPATCH_INTAKE_CONFIDENCE_THRESHOLD %q", os.Getenv("DISPATCH_INTAKE_CONFIDENCE_THRESHOLD"))
	}
	sampleRatio, err := strconv.ParseFloat(getEnv("OTEL_SAMPLE_RATIO", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid OTEL_SAMPLE_RATIO: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "dispatch-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:             os.Getenv("POSTGRES_DSN"),
			MaxConns:        maxConns,
			MinConns:        minConns,
			RunMigrations:   runMigrations,
			MigrationsDir:   getEnv("POSTGRES_MIGRATIONS_DIR", "migrations"),
			ConnMaxIdleSec:  connMaxIdle,
			ConnMaxLifeSec:  connMaxLife,
			LockTimeoutMs:   getEnvAsInt("POSTGRES_LOCK_TIMEOUT_MS", 5000),
			ApplicationName: getEnv("APP_NAME", "dispatch-service"),
		},
		Redis: RedisConfig{
			Addr:                  getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:              os.Getenv("REDIS_PASSWORD"),
			DB:                    redisDB,
			Enabled:               getEnvAsBool("REDIS_ENABLED", true),
			IdempotencyTTLMinutes: getEnvAsInt("REDIS_IDEMPOTENCY_TTL_MINUTES", 1440),
			DialTimeoutSeconds:    getEnvAsInt("REDIS_DIAL_TIMEOUT_SECONDS", 2),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:                getEnv("AUTH_JWT_ISSUER", "dispatch-service"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			RequireToken:          getEnvAsBool("AUTH_REQUIRE_TOKEN", false),
		},
		Notification: NotificationConfig{
			EmailFrom:  getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
		Dispatch: DispatchConfig{
			PolicyFile:                os.Getenv("DISPATCH_POLICY_FILE"),
			TemplatesFile:             os.Getenv("DISPATCH_TEMPLATES_FILE"),
			SeedFile:                  os.Getenv("DISPATCH_SEED_FILE"),
			SLAEmergencyMinutes:       getEnvAsInt("DISPATCH_SLA_EMERGENCY_MINUTES", 60),
			SLAUrgentMinutes:          getEnvAsInt("DISPATCH_SLA_URGENT_MINUTES", 240),
			SLARoutineMinutes:         getEnvAsInt("DISPATCH_SLA_ROUTINE_MINUTES", 1440),
			SLADefaultMinutes:         getEnvAsInt("DISPATCH_SLA_DEFAULT_MINUTES", 1440),
			SLAWarningMinutes:         getEnvAsInt("DISPATCH_SLA_WARNING_MINUTES", 60),
			IntakeConfidenceThreshold: confidence,
		},
		Autonomy: AutonomyConfig{
			GlobalPaused:        getEnvAsBool("AUTONOMY_GLOBAL_PAUSED", false),
			PausedIncidentTypes: getEnvAsList("AUTONOMY_PAUSED_INCIDENT_TYPES"),
		},
		Tracing: TracingConfig{
			Enabled:     getEnvAsBool("OTEL_ENABLED", false),
			Exporter:    getEnv("OTEL_EXPORTER", "stdout"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			Insecure:    getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
			SampleRatio: sampleRatio,
		},
		Alerts: AlertsConfig{
			ErrorRatePercent:           getEnvAsInt("ALERT_ERROR_RATE_PERCENT", 20),
			MinRequests:                getEnvAsInt("ALERT_MIN_REQUESTS", 20),
			IdempotencyConflicts:       getEnvAsInt("ALERT_IDEMPOTENCY_CONFLICTS", 5),
			DispatchWithoutSnapshotMax: getEnvAsInt("ALERT_DISPATCH_WITHOUT_SNAPSHOT", 1),
			SLABreaches:                getEnvAsInt("ALERT_SLA_BREACHES", 1),
		},
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

// IdempotencyTTL returns how long replay entries stay in Redis.
func (r RedisConfig) IdempotencyTTL() time.Duration {
	return time.Duration(r.IdempotencyTTLMinutes) * time.Minute
}

// AccessTokenTTL returns the lifetime of issued actor tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
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
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

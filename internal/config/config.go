package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AuditLogConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Format  string `mapstructure:"format"`
}

type DatabaseRetryConfig struct {
	Enabled         *bool          `mapstructure:"enabled"`
	MaxRetries      *int           `mapstructure:"max_retries"`
	InitialInterval *time.Duration `mapstructure:"initial_interval"`
	MaxInterval     *time.Duration `mapstructure:"max_interval"`
	Multiplier      *float64       `mapstructure:"multiplier"`
	Randomization   *float64       `mapstructure:"randomization"`
	FatalErrorTypes []string       `mapstructure:"fatal_error_types"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Redis      RedisConfig      `mapstructure:"redis"`
	AuditLog   AuditLogConfig   `mapstructure:"audit_log"`
	Scheduling SchedulingConfig `mapstructure:"scheduling"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
}

type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	MaxRetries      int           `mapstructure:"max_retries"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	Env             string        `mapstructure:"env"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	UseHTTPS        bool          `mapstructure:"use_https"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
	// EmbeddedWorkers runs the queue workers, reaper and sweep inside the API process.
	EmbeddedWorkers bool `mapstructure:"embedded_workers"`
}

type DatabaseConfig struct {
	Host            string              `mapstructure:"host"`
	Port            string              `mapstructure:"port"`
	User            string              `mapstructure:"user"`
	Password        string              `mapstructure:"password"`
	Name            string              `mapstructure:"name"`
	MaxOpenConns    int                 `mapstructure:"max_open_conns"`
	MaxIdleConns    int                 `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration       `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration       `mapstructure:"conn_max_idle_time"`
	SlowQueryTime   time.Duration       `mapstructure:"slow_query_time"`
	Retry           DatabaseRetryConfig `mapstructure:"retry"`
	CircuitBreaker  CBConfig            `mapstructure:"circuit_breaker"`
}

type CBConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxFailures      uint32        `mapstructure:"max_failures"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
	ResetTimeout     time.Duration `mapstructure:"reset_timeout"`
}

// JWTConfig holds the secret shared with the course/exam application, which
// issues the tokens presented to this service.
type JWTConfig struct {
	AccessSecret string `mapstructure:"access_secret"`
	Issuer       string `mapstructure:"issuer"`
	Audience     string `mapstructure:"audience"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// SchedulingConfig drives end-time calculation, the delayed task queue and the sweep.
type SchedulingConfig struct {
	Timezone          string        `mapstructure:"timezone"`
	GracePeriod       time.Duration `mapstructure:"grace_period"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	Workers           int           `mapstructure:"workers"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	VisibilityTimeout time.Duration `mapstructure:"visibility_timeout"`
	ReaperInterval    time.Duration `mapstructure:"reaper_interval"`
	SweepEnabled      bool          `mapstructure:"sweep_enabled"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SweepLookback     time.Duration `mapstructure:"sweep_lookback"`
	SignalLeadTime    time.Duration `mapstructure:"signal_lead_time"`
	// LateTolerance enables late marking when positive. Zero records every seen student as present.
	LateTolerance     time.Duration `mapstructure:"late_tolerance"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
}

// Location resolves the configured time zone. An empty value or "Local" means
// the server's local zone.
func (s SchedulingConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "localhost"),
			Env:             getEnv("ENV", "development"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			UseHTTPS:        getEnvAsBool("SERVER_USE_HTTPS", false),
			TrustedProxies:  getEnvAsSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			EmbeddedWorkers: getEnvAsBool("SERVER_EMBEDDED_WORKERS", true),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "3306"),
			User:            getEnv("DB_USER", "absences"),
			Password:        getEnv("DB_PASSWORD", "absences"),
			Name:            getEnv("DB_NAME", "absences"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			SlowQueryTime:   getEnvAsDuration("DB_SLOW_QUERY_TIME", 500*time.Millisecond),
			Retry: DatabaseRetryConfig{
				Enabled:         getEnvAsBoolPtr("DB_RETRY_ENABLED", true),
				MaxRetries:      getEnvAsIntPtr("DB_RETRY_MAX_RETRIES", 3),
				InitialInterval: getEnvAsDurationPtr("DB_RETRY_INITIAL_INTERVAL", 100*time.Millisecond),
				MaxInterval:     getEnvAsDurationPtr("DB_RETRY_MAX_INTERVAL", 2*time.Second),
				Multiplier:      getEnvAsFloatPtr("DB_RETRY_MULTIPLIER", 2.0),
				Randomization:   getEnvAsFloatPtr("DB_RETRY_RANDOMIZATION", 0.2),
				FatalErrorTypes: getEnvAsSlice("DB_RETRY_FATAL_ERROR_TYPES", []string{"constraint_violation", "duplicate_key", "foreign_key_violation"}),
			},
			CircuitBreaker: CBConfig{
				Enabled:          getEnvAsBool("DB_CIRCUIT_BREAKER_ENABLED", true),
				MaxFailures:      uint32(getEnvAsInt("DB_MAX_FAILURES", 5)),
				FailureThreshold: getEnvAsFloat("DB_FAILURE_THRESHOLD", 0.5),
				ResetTimeout:     getEnvAsDuration("DB_RESET_TIMEOUT", 30*time.Second),
			},
		},
		JWT: JWTConfig{
			AccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
			Issuer:       getEnv("JWT_ISSUER", "absences-app"),
			Audience:     getEnv("JWT_AUDIENCE", "absence-scheduler"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getEnvAsSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
		},
		Logging: LoggingConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvAsBool("ENABLE_METRICS", true),
		},
		AuditLog: AuditLogConfig{
			Enabled: getEnvAsBool("AUDIT_LOG_ENABLED", true),
			Path:    getEnv("AUDIT_LOG_PATH", ""),
			Format:  getEnv("AUDIT_LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Enabled:         getEnvAsBool("ENABLE_REDIS", false),
			Host:            getEnv("REDIS_HOST", "localhost"),
			Port:            getEnv("REDIS_PORT", "6379"),
			Password:        getEnv("REDIS_PASSWORD", ""),
			DB:              getEnvAsInt("REDIS_DB", 0),
			MaxRetries:      getEnvAsInt("REDIS_MAX_RETRIES", 3),
			PoolSize:        getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns:    getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("REDIS_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Scheduling: SchedulingConfig{
			Timezone:          getEnv("SCHEDULING_TIMEZONE", "Local"),
			GracePeriod:       getEnvAsDuration("SCHEDULING_GRACE_PERIOD", 5*time.Minute),
			MaxAttempts:       getEnvAsInt("SCHEDULING_MAX_ATTEMPTS", 3),
			RetryBackoff:      getEnvAsDuration("SCHEDULING_RETRY_BACKOFF", 60*time.Second),
			Workers:           getEnvAsInt("SCHEDULING_WORKERS", 4),
			PollInterval:      getEnvAsDuration("SCHEDULING_POLL_INTERVAL", time.Second),
			VisibilityTimeout: getEnvAsDuration("SCHEDULING_VISIBILITY_TIMEOUT", 10*time.Minute),
			ReaperInterval:    getEnvAsDuration("SCHEDULING_REAPER_INTERVAL", time.Minute),
			SweepEnabled:      getEnvAsBool("SCHEDULING_SWEEP_ENABLED", true),
			SweepInterval:     getEnvAsDuration("SCHEDULING_SWEEP_INTERVAL", time.Hour),
			SweepLookback:     getEnvAsDuration("SCHEDULING_SWEEP_LOOKBACK", 2*time.Hour),
			SignalLeadTime:    getEnvAsDuration("SCHEDULING_SIGNAL_LEAD_TIME", 30*time.Minute),
			LateTolerance:     getEnvAsDuration("SCHEDULING_LATE_TOLERANCE", 0),
			LockTTL:           getEnvAsDuration("SCHEDULING_LOCK_TTL", 2*time.Minute),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", false),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC_SESSION_EVENTS", "session-events"),
			GroupID: getEnv("KAFKA_GROUP_ID", "absence-scheduler"),
		},
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	// Common validation for all environments
	if err := c.validateDependencies(); err != nil {
		return err
	}
	if err := c.validateScheduling(); err != nil {
		return err
	}

	// Environment-specific validation
	switch c.Server.Env {
	case "production":
		if err := c.validateProduction(); err != nil {
			return err
		}
	case "staging":
		if err := c.validateStaging(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateDependencies() error {
	if c.Database.CircuitBreaker.Enabled {
		if c.Database.CircuitBreaker.MaxFailures < 1 {
			return fmt.Errorf("DB_MAX_FAILURES must be at least 1 when circuit breaker is enabled")
		}
		if c.Database.CircuitBreaker.FailureThreshold <= 0 ||
			c.Database.CircuitBreaker.FailureThreshold > 1.0 {
			return fmt.Errorf("DB_FAILURE_THRESHOLD must be between 0 and 1.0")
		}
		if c.Database.CircuitBreaker.ResetTimeout <= 0 {
			return fmt.Errorf("DB_RESET_TIMEOUT must be greater than 0")
		}
	}

	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis host required when redis is enabled")
	}

	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("KAFKA_BROKERS and KAFKA_TOPIC_SESSION_EVENTS are required when kafka is enabled")
	}

	if c.JWT.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if len(c.JWT.AccessSecret) < 32 {
		return fmt.Errorf("JWT access secret must be at least 32 characters long")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Database.SlowQueryTime <= 0 {
		return fmt.Errorf("DB_SLOW_QUERY_TIME must be greater than 0")
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}

	return nil
}

func (c *Config) validateScheduling() error {
	s := c.Scheduling
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("SCHEDULING_TIMEZONE is not a valid IANA zone: %w", err)
	}
	if s.GracePeriod < 0 {
		return fmt.Errorf("SCHEDULING_GRACE_PERIOD cannot be negative")
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("SCHEDULING_MAX_ATTEMPTS must be at least 1")
	}
	if s.RetryBackoff <= 0 {
		return fmt.Errorf("SCHEDULING_RETRY_BACKOFF must be greater than 0")
	}
	if s.Workers < 1 {
		return fmt.Errorf("SCHEDULING_WORKERS must be at least 1")
	}
	if s.PollInterval <= 0 {
		return fmt.Errorf("SCHEDULING_POLL_INTERVAL must be greater than 0")
	}
	if s.VisibilityTimeout <= 0 || s.ReaperInterval <= 0 {
		return fmt.Errorf("SCHEDULING_VISIBILITY_TIMEOUT and SCHEDULING_REAPER_INTERVAL must be greater than 0")
	}
	if s.SweepEnabled && (s.SweepInterval <= 0 || s.SweepLookback <= 0) {
		return fmt.Errorf("SCHEDULING_SWEEP_INTERVAL and SCHEDULING_SWEEP_LOOKBACK must be greater than 0 when the sweep is enabled")
	}
	if s.LateTolerance < 0 {
		return fmt.Errorf("SCHEDULING_LATE_TOLERANCE cannot be negative")
	}
	if s.LockTTL <= 0 {
		return fmt.Errorf("SCHEDULING_LOCK_TTL must be greater than 0")
	}
	return nil
}

func (c *Config) validateProduction() error {
	insecureDefaults := []string{
		"change-this-to-a-secure-random-string",
		"secret",
		"your-secret-key",
	}

	for _, defaultVal := range insecureDefaults {
		if strings.Contains(strings.ToLower(c.JWT.AccessSecret), strings.ToLower(defaultVal)) {
			return fmt.Errorf("FATAL SECURITY: Default/insecure JWT Access Secret detected in production. Please generate a cryptographically secure secret with at least 32 random characters")
		}
	}

	weakPasswords := []string{"password", "absences", "admin", "root", "test", ""}
	dbPass := strings.ToLower(c.Database.Password)
	for _, weak := range weakPasswords {
		if dbPass == weak {
			return fmt.Errorf("FATAL SECURITY: Weak or default database password detected in production (current: %s)", weak)
		}
	}
	if len(c.Database.Password) < 16 {
		return fmt.Errorf("FATAL SECURITY: Database password must be at least 16 characters in production (current length: %d)", len(c.Database.Password))
	}
	if !hasPasswordComplexity(c.Database.Password) {
		return fmt.Errorf("FATAL SECURITY: Database password must contain uppercase, lowercase, numbers, and special characters in production")
	}

	if !c.Server.UseHTTPS {
		return fmt.Errorf("FATAL SECURITY: HTTPS must be enabled in production (SERVER_USE_HTTPS=true)")
	}

	// Several worker processes share the queue in production; the session lock
	// must be distributed.
	if !c.Redis.Enabled {
		return fmt.Errorf("WARNING: Redis is disabled in production. Reconciliation locks and rate limits will not work across multiple instances")
	}

	if c.Logging.Encoding != "json" {
		return fmt.Errorf("FATAL: Production logging should use JSON format for log aggregation")
	}

	return nil
}

func (c *Config) validateStaging() error {
	if c.Logging.Encoding != "json" {
		return fmt.Errorf("WARNING: Staging logging should use JSON format to match production logging configuration")
	}
	if !c.Redis.Enabled {
		return fmt.Errorf("WARNING: Redis is disabled in staging. This should match production configuration for accurate testing")
	}
	return nil
}

func hasPasswordComplexity(password string) bool {
	hasUpper := regexp.MustCompile(`[A-Z]`).MatchString(password)
	hasLower := regexp.MustCompile(`[a-z]`).MatchString(password)
	hasNumber := regexp.MustCompile(`[0-9]`).MatchString(password)
	hasSpecial := regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`).MatchString(password)
	return hasUpper && hasLower && hasNumber && hasSpecial
}

func getEnvAsFloatPtr(key string, defaultValue float64) *float64 {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
		return &floatValue
	}
	return &defaultValue
}

func getEnvAsBoolPtr(key string, defaultValue bool) *bool {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if boolValue, err := strconv.ParseBool(value); err == nil {
		return &boolValue
	}
	return &defaultValue
}

func getEnvAsIntPtr(key string, defaultValue int) *int {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if intValue, err := strconv.Atoi(value); err == nil {
		return &intValue
	}
	return &defaultValue
}

func getEnvAsDurationPtr(key string, defaultValue time.Duration) *time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return &defaultValue
	}
	if durationValue, err := time.ParseDuration(value); err == nil {
		return &durationValue
	}
	return &defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if durationValue, err := time.ParseDuration(value); err == nil {
			return durationValue
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmedPart := strings.TrimSpace(part)
		if trimmedPart != "" {
			result = append(result, trimmedPart)
		}
	}
	return result
}

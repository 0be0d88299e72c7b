package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validSecret = "12345678901234567890123456789012"

func TestLoad_Success(t *testing.T) {
	os.Clearenv()
	os.Setenv("JWT_ACCESS_SECRET", validSecret)

	os.Setenv("SERVER_PORT", "9090")
	os.Setenv("ENABLE_METRICS", "false")
	os.Setenv("DB_MAX_OPEN_CONNS", "50")
	os.Setenv("CORS_ALLOWED_ORIGINS", "http://foo.com,http://bar.com")

	defer os.Clearenv()

	cfg, err := Load()
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, []string{"http://foo.com", "http://bar.com"}, cfg.CORS.AllowedOrigins)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_SchedulingDefaults(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	s := cfg.Scheduling
	assert.Equal(t, 5*time.Minute, s.GracePeriod)
	assert.Equal(t, 3, s.MaxAttempts)
	assert.Equal(t, 60*time.Second, s.RetryBackoff)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, time.Hour, s.SweepInterval)
	assert.Equal(t, 2*time.Hour, s.SweepLookback)
	assert.True(t, s.SweepEnabled)
	assert.Zero(t, s.LateTolerance)
	assert.False(t, cfg.Kafka.Enabled)

	loc, err := s.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestValidate_Failures(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ACCESS_SECRET is required")

	cfg.JWT.AccessSecret = "short"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "must be at least 32 characters")

	cfg.JWT.AccessSecret = validSecret
	require.NoError(t, cfg.Validate())

	cfg.Scheduling.Timezone = "Mars/Olympus_Mons"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULING_TIMEZONE")

	cfg.Scheduling.Timezone = "Africa/Casablanca"
	cfg.Scheduling.MaxAttempts = 0
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SCHEDULING_MAX_ATTEMPTS")

	cfg.Scheduling.MaxAttempts = 3
	cfg.Kafka.Enabled = true
	cfg.Kafka.Brokers = nil
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestValidate_Production(t *testing.T) {
	os.Clearenv()
	defer os.Clearenv()

	cfg, err := Load()
	require.NoError(t, err)
	cfg.JWT.AccessSecret = "a9F!kL2#pQ8@zX4$mN7%vB1^cD6&hJ3*"
	cfg.Server.Env = "production"

	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database password")

	cfg.Database.Password = "Str0ng!Passw0rd#2024"
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "HTTPS")

	cfg.Server.UseHTTPS = true
	err = cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Redis is disabled")

	cfg.Redis.Enabled = true
	assert.NoError(t, cfg.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("TEST_INT", "abc")
	os.Setenv("TEST_BOOL", "not_bool")
	os.Setenv("TEST_DUR", "invalid_dur")
	defer os.Clearenv()

	assert.Equal(t, 10, getEnvAsInt("TEST_INT", 10))
	assert.Equal(t, true, getEnvAsBool("TEST_BOOL", true))
	assert.Equal(t, time.Second, getEnvAsDuration("TEST_DUR", time.Second))

	os.Setenv("TEST_SLICE", "")
	assert.Equal(t, []string{"default"}, getEnvAsSlice("TEST_SLICE", []string{"default"}))

	os.Setenv("TEST_SLICE", " a, ,b ")
	assert.Equal(t, []string{"a", "b"}, getEnvAsSlice("TEST_SLICE", nil))
}

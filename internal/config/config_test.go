package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequireStringReturnsErrorWhenUnset(t *testing.T) {
	os.Unsetenv("NEWSFEED_TEST_REQUIRED")
	_, err := RequireString("NEWSFEED_TEST_REQUIRED")
	require.Error(t, err)
}

func TestRequireStringReturnsValueWhenSet(t *testing.T) {
	os.Setenv("NEWSFEED_TEST_REQUIRED", "value")
	defer os.Unsetenv("NEWSFEED_TEST_REQUIRED")

	v, err := RequireString("NEWSFEED_TEST_REQUIRED")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

func TestIntOrDefaultFallsBackOnUnparsable(t *testing.T) {
	os.Setenv("NEWSFEED_TEST_INT", "not-a-number")
	defer os.Unsetenv("NEWSFEED_TEST_INT")
	assert.Equal(t, 5, IntOrDefault("NEWSFEED_TEST_INT", 5))
}

func TestIntOrDefaultParsesValidValue(t *testing.T) {
	os.Setenv("NEWSFEED_TEST_INT", "42")
	defer os.Unsetenv("NEWSFEED_TEST_INT")
	assert.Equal(t, 42, IntOrDefault("NEWSFEED_TEST_INT", 5))
}

func TestDurationOrDefaultParsesValidValue(t *testing.T) {
	os.Setenv("NEWSFEED_TEST_DURATION", "3m")
	defer os.Unsetenv("NEWSFEED_TEST_DURATION")
	assert.Equal(t, 3*time.Minute, DurationOrDefault("NEWSFEED_TEST_DURATION", time.Minute))
}

func TestFloatOrDefaultFallsBackWhenUnset(t *testing.T) {
	os.Unsetenv("NEWSFEED_TEST_FLOAT")
	assert.Equal(t, 2.5, FloatOrDefault("NEWSFEED_TEST_FLOAT", 2.5))
}

func TestLoadCommonReadsAllFields(t *testing.T) {
	os.Setenv("BROKER_URL", "amqp://localhost")
	os.Setenv("DATABASE_TYPE", "sqlite3")
	os.Setenv("DATABASE_URL", ":memory:")
	os.Setenv("LOG_DIR", "/tmp/newsfeed-logs")
	os.Setenv("BIND_ADDRESS", ":8080")
	defer os.Unsetenv("BROKER_URL")
	defer os.Unsetenv("DATABASE_TYPE")
	defer os.Unsetenv("DATABASE_URL")
	defer os.Unsetenv("LOG_DIR")
	defer os.Unsetenv("BIND_ADDRESS")

	c := LoadCommon()
	assert.Equal(t, "amqp://localhost", c.BrokerURL)
	assert.Equal(t, "sqlite3", c.DatabaseType)
	assert.Equal(t, ":memory:", c.DatabaseURL)
	assert.Equal(t, "/tmp/newsfeed-logs", c.LogDir)
	assert.Equal(t, ":8080", c.BindAddress)
}

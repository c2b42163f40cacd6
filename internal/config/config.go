// Package config reads the environment-variable configuration common to
// every stage.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Common holds the environment variables shared by every stage.
type Common struct {
	BrokerURL    string
	DatabaseType string
	DatabaseURL  string
	LogDir       string
	BindAddress  string
}

// LoadCommon reads the shared environment variables. It never fails:
// individual stages decide which fields are mandatory for them.
func LoadCommon() Common {
	return Common{
		BrokerURL:    os.Getenv("BROKER_URL"),
		DatabaseType: os.Getenv("DATABASE_TYPE"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogDir:       os.Getenv("LOG_DIR"),
		BindAddress:  os.Getenv("BIND_ADDRESS"),
	}
}

// RequireString returns a Fatal-flavoured error if the named env var is unset.
func RequireString(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", name)
	}
	return v, nil
}

// IntOrDefault parses an integer env var, falling back to def if unset or unparsable.
func IntOrDefault(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// DurationOrDefault parses a duration env var (e.g. "3m"), falling back to def.
func DurationOrDefault(name string, def time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// FloatOrDefault parses a float env var, falling back to def.
func FloatOrDefault(name string, def float64) float64 {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

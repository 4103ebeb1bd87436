package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"time"
)

// Config holds everything the server and worker binaries read from the
// environment. Settlement-specific knobs (processor URLs, credentials) are
// only required by the worker; see RequireProcessor.
type Config struct {
	HTTPAddr string

	DBType     string // "postgres" or "sqlite"
	ConnString string // postgres
	SQLitePath string

	RedisAddr string

	WorkerCount    int
	ReclaimMinIdle time.Duration

	ProcessorTokenURL     string
	ProcessorChargeURL    string
	ProcessorUsername     string
	ProcessorPassword     string
	ProcessorClientID     string
	ProcessorClientSecret string
	ProcessorTimeout      time.Duration
}

func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:       getenv("HTTP_ADDR", ":9999"),
		DBType:         getenv("DB_TYPE", "sqlite"),
		ConnString:     os.Getenv("CONN_STRING"),
		SQLitePath:     getenv("SQLITE_PATH", "./payments.db"),
		RedisAddr:      os.Getenv("REDIS_URL"),
		WorkerCount:    getenvInt("WORKER_COUNT", runtime.NumCPU()),
		ReclaimMinIdle: getenvDuration("RECLAIM_MIN_IDLE", 30*time.Second),

		ProcessorTokenURL:     os.Getenv("PROCESSOR_TOKEN_URL"),
		ProcessorChargeURL:    os.Getenv("PROCESSOR_CHARGE_URL"),
		ProcessorUsername:     os.Getenv("PROCESSOR_USERNAME"),
		ProcessorPassword:     os.Getenv("PROCESSOR_PASSWORD"),
		ProcessorClientID:     os.Getenv("PROCESSOR_CLIENT_ID"),
		ProcessorClientSecret: os.Getenv("PROCESSOR_CLIENT_SECRET"),
		ProcessorTimeout:      getenvDuration("PROCESSOR_TIMEOUT", 10*time.Second),
	}

	if cfg.RedisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_URL not defined")
	}
	switch cfg.DBType {
	case "postgres":
		if cfg.ConnString == "" {
			return Config{}, fmt.Errorf("CONN_STRING not defined")
		}
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("unknown DB_TYPE %q", cfg.DBType)
	}
	return cfg, nil
}

// RequireProcessor checks the settings only the settlement worker needs.
func (c Config) RequireProcessor() error {
	if c.ProcessorTokenURL == "" {
		return fmt.Errorf("PROCESSOR_TOKEN_URL not defined")
	}
	if c.ProcessorChargeURL == "" {
		return fmt.Errorf("PROCESSOR_CHARGE_URL not defined")
	}
	if c.ProcessorUsername == "" || c.ProcessorPassword == "" {
		return fmt.Errorf("processor credentials not defined")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

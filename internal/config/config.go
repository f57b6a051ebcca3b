// Package config loads process settings from a .env file and the
// environment. Model settings live in the scenario file, not here.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the process settings.
type Config struct {
	Workers   int
	LogLevel  string
	Dev       bool
	OutputDir string
	DBDriver  string
	DBDSN     string
	Port      int
	CacheSize int
}

// Load reads envFile when it exists, then the environment. Variables
// already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	c := &Config{
		LogLevel:  getEnv("BUILDSTOCK_LOG_LEVEL", "info"),
		OutputDir: getEnv("BUILDSTOCK_OUTPUT_DIR", "output"),
		DBDriver:  getEnv("BUILDSTOCK_DB_DRIVER", ""),
		DBDSN:     getEnv("BUILDSTOCK_DB_DSN", ""),
	}
	var err error
	if c.Workers, err = getEnvInt("BUILDSTOCK_WORKERS", runtime.GOMAXPROCS(0)); err != nil {
		return nil, err
	}
	if c.Port, err = getEnvInt("BUILDSTOCK_PORT", 8080); err != nil {
		return nil, err
	}
	if c.CacheSize, err = getEnvInt("BUILDSTOCK_CACHE_SIZE", 4096); err != nil {
		return nil, err
	}
	if c.Dev, err = getEnvBool("BUILDSTOCK_DEV", false); err != nil {
		return nil, err
	}
	if c.DBDSN != "" && c.DBDriver == "" {
		c.DBDriver = "sqlite3"
	}
	return c, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

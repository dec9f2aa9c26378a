// Package config reads the client's settings from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	apiURLEnvVar  = "TRANSCRIBA_API_URL"
	dataDirEnvVar = "TRANSCRIBA_DATA_DIR"
	timeoutEnvVar = "TRANSCRIBA_HTTP_TIMEOUT"

	defaultAPIURL  = "http://localhost:3000"
	defaultTimeout = 30 * time.Second
)

// Config holds the resolved client settings.
type Config struct {
	APIURL      string
	DataDir     string
	HTTPTimeout time.Duration
}

// Load resolves the configuration from environment variables, falling back
// to defaults. The data directory follows XDG conventions when
// TRANSCRIBA_DATA_DIR is unset.
func Load() (Config, error) {
	cfg := Config{
		APIURL:      getEnv(apiURLEnvVar, defaultAPIURL),
		DataDir:     getEnv(dataDirEnvVar, ""),
		HTTPTimeout: defaultTimeout,
	}

	if cfg.DataDir == "" {
		dir, err := defaultDataDir()
		if err != nil {
			return Config{}, err
		}
		cfg.DataDir = dir
	}

	if v := os.Getenv(timeoutEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", timeoutEnvVar, err)
		}
		cfg.HTTPTimeout = d
	}
	return cfg, nil
}

// CredentialsPath is the bbolt file holding remembered tokens.
func (c Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "credentials.db")
}

// EnsureDataDir creates the data directory if needed.
func (c Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o700)
}

func defaultDataDir() (string, error) {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "transcriba"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "transcriba"), nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

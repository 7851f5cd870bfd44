// Package config reads server settings from the environment, after loading
// an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full set of server settings.
type Config struct {
	Port               string
	LogLevel           string
	LogFormat          string // "json" or "console"
	DBPath             string
	ClientOrigins      []string
	JWTSecret          string
	SessionTokenTTL    time.Duration
	SessionIdleTimeout time.Duration
	DailySalt          string
	AdminPasswordHash  string
}

// Load reads .env (if present) and then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables and defaults.
func FromEnv() (Config, error) {
	c := Config{
		Port:              getEnv("PORT", "5001"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", "json"),
		DBPath:            getEnv("DB_PATH", "./data/tetris.db"),
		ClientOrigins:     splitList(getEnv("CLIENT_ORIGINS", "http://localhost:3000,http://127.0.0.1:3000")),
		JWTSecret:         getEnv("JWT_SECRET", "dev_secret_change_me"),
		DailySalt:         getEnv("DAILY_SALT", "local_dev_salt"),
		AdminPasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
	}

	hours, err := strconv.Atoi(getEnv("SESSION_TOKEN_HOURS", "24"))
	if err != nil || hours <= 0 {
		return Config{}, fmt.Errorf("SESSION_TOKEN_HOURS: want a positive integer, got %q", os.Getenv("SESSION_TOKEN_HOURS"))
	}
	c.SessionTokenTTL = time.Duration(hours) * time.Hour

	idle, err := time.ParseDuration(getEnv("SESSION_IDLE_TIMEOUT", "30m"))
	if err != nil || idle < 0 {
		return Config{}, fmt.Errorf("SESSION_IDLE_TIMEOUT: want a duration, got %q", os.Getenv("SESSION_IDLE_TIMEOUT"))
	}
	c.SessionIdleTimeout = idle

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return Config{}, fmt.Errorf("LOG_FORMAT: want json or console, got %q", c.LogFormat)
	}
	return c, nil
}

// Addr is the listen address.
func (c Config) Addr() string { return ":" + c.Port }

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// maxCacheSecs is the largest duration in seconds that fits time.Duration.
const maxCacheSecs = uint64(math.MaxInt64 / int64(time.Second))

type Config struct {
	Port            string
	CacheDuration   time.Duration
	PWSID           string
	APIKey          string
	UpstreamBaseURL string
	Units           string
	LogLevel        slog.Level
}

// Load reads the process environment. Every missing or malformed required
// variable is reported in the returned error.
func Load() (Config, error) {
	var errs []error

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		UpstreamBaseURL: strings.TrimRight(getEnv("UPSTREAM_BASE_URL", "https://api.weather.com"), "/"),
		Units:           getEnv("UNITS", "m"),
	}

	secs, err := requireEnv("CACHE_DURATION_SECS")
	if err != nil {
		errs = append(errs, err)
	} else if n, err := strconv.ParseUint(secs, 10, 64); err != nil {
		errs = append(errs, fmt.Errorf("CACHE_DURATION_SECS wrong value %q: want a non-negative integer", secs))
	} else if n > maxCacheSecs {
		errs = append(errs, fmt.Errorf("CACHE_DURATION_SECS wrong value %q: at most %d", secs, maxCacheSecs))
	} else {
		cfg.CacheDuration = time.Duration(n) * time.Second
	}

	if cfg.PWSID, err = requireEnv("PWS_ID"); err != nil {
		errs = append(errs, err)
	}
	if cfg.APIKey, err = requireEnv("API_KEY"); err != nil {
		errs = append(errs, err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (c Config) ListenAddr() string {
	return "0.0.0.0:" + c.Port
}

// requireEnv returns the value as set. Unset and empty count as missing.
func requireEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("%s not defined", key)
	}
	return v, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

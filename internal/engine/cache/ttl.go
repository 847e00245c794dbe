package cache

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Valuations move with the market, so entries are short-lived.
const (
	DefaultTTLSeconds = 15 * 60
	MinTTLSeconds     = 60
	MaxTTLSeconds     = 24 * 60 * 60
)

// Environment overrides for the cache section.
const (
	EnvCacheEnabled = "FINBOARD_CACHE_ENABLED"
	EnvTTLSeconds   = "FINBOARD_CACHE_TTL_SECONDS"
	EnvCacheDir     = "FINBOARD_CACHE_DIR"
)

// ErrInvalidTTL is returned for a TTL outside [MinTTLSeconds, MaxTTLSeconds].
var ErrInvalidTTL = fmt.Errorf("TTL must be between %d and %d seconds", MinTTLSeconds, MaxTTLSeconds)

// ValidateTTL checks seconds against the allowed range.
func ValidateTTL(seconds int) error {
	if seconds < MinTTLSeconds || seconds > MaxTTLSeconds {
		return fmt.Errorf("%w: got %d", ErrInvalidTTL, seconds)
	}
	return nil
}

// ParseTTL accepts whole seconds ("900") or a Go duration ("15m").
func ParseTTL(s string) (int, error) {
	s = strings.TrimSpace(s)
	seconds, err := strconv.Atoi(s)
	if err != nil {
		d, durErr := time.ParseDuration(s)
		if durErr != nil {
			return 0, fmt.Errorf("invalid TTL %q: %w", s, durErr)
		}
		seconds = int(d / time.Second)
	}
	if err := ValidateTTL(seconds); err != nil {
		return 0, err
	}
	return seconds, nil
}

// Settings mirrors the cache section of the configuration.
type Settings struct {
	Enabled    bool
	TTLSeconds int
	Dir        string
}

// WithEnv returns s with the FINBOARD_CACHE_* variables applied. Values that
// do not parse leave the field unchanged.
func (s Settings) WithEnv() Settings {
	if v, ok := os.LookupEnv(EnvCacheEnabled); ok {
		if enabled, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			s.Enabled = enabled
		}
	}
	if v, ok := os.LookupEnv(EnvTTLSeconds); ok {
		if ttl, err := ParseTTL(v); err == nil {
			s.TTLSeconds = ttl
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvCacheDir)); v != "" {
		s.Dir = v
	}
	return s
}

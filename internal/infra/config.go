package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Fallback modes accepted by EDIT_FALLBACK.
const (
	FallbackPropagate = "propagate"
	FallbackStub      = "stub"
)

// Environment keys that the edit and animate endpoints cannot work without.
const (
	KeyEditURL       = "NANO_API_URL"
	KeyEditAPIKey    = "NANO_API_KEY"
	KeyAnimateURL    = "ANIMATE_URL"
	KeyAnimateAPIKey = "ANIMATE_API_KEY"
)

// Tuning groups the retry and timeout knobs for one outbound backend.
type Tuning struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// Config represents application configuration loaded from environment variables.
// It is built once at start-up and treated as read-only afterwards.
type Config struct {
	AppEnv      string
	Port        string
	AllowOrigin string
	GeoIPDBPath string

	EditURL      string
	EditAPIKey   string
	EditTuning   Tuning
	EditFallback string

	FetchTimeout      time.Duration
	FetchAllowPrivate bool

	AnimateURL         string
	AnimateAPIKey      string
	AnimateDurationSec float64
	AnimateFPS         int
	AnimateTuning      Tuning

	RateLimitPerMin  int
	MaxBodyBytes     int64
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
// Missing backend credentials are not an error here; see MissingEditKeys.
func LoadConfig() (*Config, error) {
	var errs []string
	intVar := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	msVar := func(key string, fallback int) time.Duration {
		return time.Millisecond * time.Duration(intVar(key, fallback))
	}

	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		AllowOrigin: getEnv("ALLOW_ORIGIN", "*"),
		GeoIPDBPath: strings.TrimSpace(os.Getenv("GEOIP_DB_PATH")),

		EditURL:    strings.TrimSpace(os.Getenv(KeyEditURL)),
		EditAPIKey: strings.TrimSpace(os.Getenv(KeyEditAPIKey)),
		EditTuning: Tuning{
			MaxAttempts: intVar("EDIT_MAX_ATTEMPTS", 3),
			BaseDelay:   msVar("EDIT_BASE_DELAY_MS", 500),
			Timeout:     msVar("EDIT_TIMEOUT_MS", 60000),
		},
		EditFallback: strings.ToLower(getEnv("EDIT_FALLBACK", FallbackPropagate)),

		FetchTimeout:      msVar("FETCH_TIMEOUT_MS", 15000),
		FetchAllowPrivate: getEnvBool("FETCH_ALLOW_PRIVATE", false),

		AnimateURL:    strings.TrimSpace(os.Getenv(KeyAnimateURL)),
		AnimateAPIKey: strings.TrimSpace(os.Getenv(KeyAnimateAPIKey)),
		AnimateFPS:    intVar("ANIMATE_FPS", 25),
		AnimateTuning: Tuning{
			MaxAttempts: intVar("ANIMATE_MAX_ATTEMPTS", 2),
			BaseDelay:   msVar("ANIMATE_BASE_DELAY_MS", 1000),
			Timeout:     msVar("ANIMATE_TIMEOUT_MS", 120000),
		},

		RateLimitPerMin:  intVar("RATE_LIMIT_PER_MINUTE", 60),
		MaxBodyBytes:     int64(intVar("MAX_BODY_BYTES", 25<<20)),
		HTTPReadTimeout:  time.Second * time.Duration(intVar("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout: time.Second * time.Duration(intVar("HTTP_WRITE_TIMEOUT_SECONDS", 180)),
		HTTPIdleTimeout:  time.Second * time.Duration(intVar("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	duration, err := getEnvFloat("ANIMATE_DURATION_SEC", 5)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.AnimateDurationSec = duration

	if cfg.EditFallback != FallbackPropagate && cfg.EditFallback != FallbackStub {
		errs = append(errs, fmt.Sprintf("EDIT_FALLBACK must be %q or %q, got %q", FallbackPropagate, FallbackStub, cfg.EditFallback))
	}
	if cfg.EditTuning.MaxAttempts < 1 {
		errs = append(errs, "EDIT_MAX_ATTEMPTS must be at least 1")
	}
	if cfg.AnimateTuning.MaxAttempts < 1 {
		errs = append(errs, "ANIMATE_MAX_ATTEMPTS must be at least 1")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// MissingEditKeys lists the edit backend keys that are unset.
func (c *Config) MissingEditKeys() []string {
	return missing(map[string]string{KeyEditURL: c.EditURL, KeyEditAPIKey: c.EditAPIKey}, KeyEditURL, KeyEditAPIKey)
}

// MissingAnimateKeys lists the animate backend keys that are unset.
func (c *Config) MissingAnimateKeys() []string {
	return missing(map[string]string{KeyAnimateURL: c.AnimateURL, KeyAnimateAPIKey: c.AnimateAPIKey}, KeyAnimateURL, KeyAnimateAPIKey)
}

// StubOnFailure reports whether transport failures degrade to a placeholder.
func (c *Config) StubOnFailure() bool {
	return c.EditFallback == FallbackStub
}

func missing(values map[string]string, order ...string) []string {
	var out []string
	for _, key := range order {
		if values[key] == "" {
			out = append(out, key)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return i, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback, fmt.Errorf("%s must be a number, got %q", key, v)
	}
	return f, nil
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

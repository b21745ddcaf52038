package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("NANO_API_URL", "")
	t.Setenv("NANO_API_KEY", "")
	t.Setenv("ALLOW_ORIGIN", "")
	t.Setenv("EDIT_FALLBACK", "")
	t.Setenv("EDIT_MAX_ATTEMPTS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AllowOrigin != "*" {
		t.Fatalf("AllowOrigin mismatch: got %q want %q", cfg.AllowOrigin, "*")
	}
	if cfg.EditFallback != FallbackPropagate || cfg.StubOnFailure() {
		t.Fatalf("EditFallback mismatch: got %q", cfg.EditFallback)
	}
	if cfg.EditTuning.MaxAttempts != 3 || cfg.EditTuning.BaseDelay != 500*time.Millisecond {
		t.Fatalf("EditTuning mismatch: %+v", cfg.EditTuning)
	}
	if cfg.AnimateDurationSec != 5 || cfg.AnimateFPS != 25 {
		t.Fatalf("animate defaults mismatch: %v %d", cfg.AnimateDurationSec, cfg.AnimateFPS)
	}
}

func TestLoadConfigMissingEditKeys(t *testing.T) {
	t.Setenv("NANO_API_URL", "https://example.com/v1beta/models/m:generateContent")
	t.Setenv("NANO_API_KEY", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	got := cfg.MissingEditKeys()
	if len(got) != 1 || got[0] != KeyEditAPIKey {
		t.Fatalf("MissingEditKeys mismatch: %#v", got)
	}

	t.Setenv("NANO_API_URL", "")
	cfg, err = LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	got = cfg.MissingEditKeys()
	if len(got) != 2 || got[0] != KeyEditURL || got[1] != KeyEditAPIKey {
		t.Fatalf("MissingEditKeys mismatch: %#v", got)
	}
}

func TestLoadConfigNoMissingKeysWhenSet(t *testing.T) {
	t.Setenv("NANO_API_URL", "https://example.com")
	t.Setenv("NANO_API_KEY", "secret")
	t.Setenv("ANIMATE_URL", "https://vidu.example.com")
	t.Setenv("ANIMATE_API_KEY", "token")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if keys := cfg.MissingEditKeys(); len(keys) != 0 {
		t.Fatalf("expected no missing edit keys, got %#v", keys)
	}
	if keys := cfg.MissingAnimateKeys(); len(keys) != 0 {
		t.Fatalf("expected no missing animate keys, got %#v", keys)
	}
}

func TestLoadConfigStubFallback(t *testing.T) {
	t.Setenv("EDIT_FALLBACK", "STUB")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.StubOnFailure() {
		t.Fatalf("expected stub fallback to be enabled")
	}
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "non numeric attempts", key: "EDIT_MAX_ATTEMPTS", value: "three"},
		{name: "zero attempts", key: "EDIT_MAX_ATTEMPTS", value: "0"},
		{name: "unknown fallback", key: "EDIT_FALLBACK", value: "maybe"},
		{name: "non numeric duration", key: "ANIMATE_DURATION_SEC", value: "long"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

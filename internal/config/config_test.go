package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	if v := envInt("TEST_INT", 0); v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	// TEST_INT_MISSING is not set; malformed values also fall back.
	if v := envInt("TEST_INT_MISSING", 99); v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
	t.Setenv("TEST_INT_BAD", "abc")
	if v := envInt("TEST_INT_BAD", 7); v != 7 {
		t.Fatalf("expected fallback 7 for malformed value, got %d", v)
	}
}

func TestEnvFloat(t *testing.T) {
	t.Setenv("TEST_FLOAT", "2500.5")
	if v := envFloat("TEST_FLOAT", 0); v != 2500.5 {
		t.Fatalf("expected 2500.5, got %f", v)
	}
	if v := envFloat("TEST_FLOAT_MISSING", 1000); v != 1000 {
		t.Fatalf("expected fallback 1000, got %f", v)
	}
}

func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	if v := envDuration("TEST_DUR", 0); v != 5*time.Second {
		t.Fatalf("expected 5s, got %s", v)
	}
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	if v := envDuration("TEST_DUR_BAD", time.Minute); v != time.Minute {
		t.Fatalf("expected fallback 1m for malformed value, got %s", v)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.AvgDealValue != 1000 {
		t.Fatalf("expected default avg deal value 1000, got %f", cfg.AvgDealValue)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("CADENCE_AVG_DEAL_VALUE", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected Load() to fail with negative CADENCE_AVG_DEAL_VALUE")
	}
}

func TestValidateRequiresDatabaseURL(t *testing.T) {
	cfg := Config{AvgDealValue: 1000, MaxRequestBodyBytes: 1, MaxIngestBatchSize: 1}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected Validate() to fail without DATABASE_URL")
	}
}

package config

import (
	"os"
	"testing"
	"time"
)

func clearEnvironment(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CLASSD_HTTP_PORT",
		"CLASSD_SQLITE_DSN",
		"CLASSD_TOKEN_SECRET",
		"CLASSD_TOKEN_DEFAULT_MINUTES",
		"CLASSD_TIMEZONE",
		"CLASSD_GENERATION_WEEKS",
		"CLASSD_GENERATION_INTERVAL",
		"CLASSD_SWEEP_INTERVAL",
	} {
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {

	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("CLASSD_TOKEN_SECRET", "super-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "file:classd.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.TokenSecret != "super-secret" {
			t.Fatalf("unexpected token secret: %q", cfg.TokenSecret)
		}
		if cfg.TokenDefaultMinutes != 60 {
			t.Fatalf("expected default token lifetime 60, got %d", cfg.TokenDefaultMinutes)
		}
		if cfg.Timezone != "UTC" {
			t.Fatalf("expected default timezone UTC, got %q", cfg.Timezone)
		}
		if cfg.GenerationWeeks != 4 {
			t.Fatalf("expected default generation weeks 4, got %d", cfg.GenerationWeeks)
		}
		if cfg.GenerationInterval != time.Hour {
			t.Fatalf("expected default generation interval 1h, got %v", cfg.GenerationInterval)
		}
		if cfg.SweepInterval != 15*time.Minute {
			t.Fatalf("expected default sweep interval 15m, got %v", cfg.SweepInterval)
		}
	})

	t.Run("errors when required values are missing", func(t *testing.T) {
		clearEnvironment(t)

		_, err := Load()
		if err == nil {
			t.Fatal("expected error when required values are missing")
		}
		expected := "required environment variables are not set: CLASSD_TOKEN_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("parses overrides", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("CLASSD_TOKEN_SECRET", "secret")
		t.Setenv("CLASSD_HTTP_PORT", "9090")
		t.Setenv("CLASSD_SQLITE_DSN", "file:other.db")
		t.Setenv("CLASSD_TOKEN_DEFAULT_MINUTES", "30")
		t.Setenv("CLASSD_TIMEZONE", "Asia/Tokyo")
		t.Setenv("CLASSD_GENERATION_WEEKS", "8")
		t.Setenv("CLASSD_GENERATION_INTERVAL", "30m")
		t.Setenv("CLASSD_SWEEP_INTERVAL", "1h")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 || cfg.SQLiteDSN != "file:other.db" {
			t.Fatalf("overrides not applied: %+v", cfg)
		}
		if cfg.TokenDefaultMinutes != 30 || cfg.GenerationWeeks != 8 {
			t.Fatalf("numeric overrides not applied: %+v", cfg)
		}
		if cfg.Timezone != "Asia/Tokyo" {
			t.Fatalf("timezone override not applied: %q", cfg.Timezone)
		}
		if cfg.GenerationInterval != 30*time.Minute || cfg.SweepInterval != time.Hour {
			t.Fatalf("interval overrides not applied: %+v", cfg)
		}

		loc, err := cfg.Location()
		if err != nil {
			t.Fatalf("Location failed: %v", err)
		}
		if loc.String() != "Asia/Tokyo" {
			t.Fatalf("unexpected location %v", loc)
		}
	})

	t.Run("collects every invalid value", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("CLASSD_TOKEN_SECRET", "secret")
		t.Setenv("CLASSD_HTTP_PORT", "not-a-port")
		t.Setenv("CLASSD_GENERATION_WEEKS", "0")
		t.Setenv("CLASSD_SWEEP_INTERVAL", "-5m")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for invalid values")
		}
		expected := "environment variables have invalid values: CLASSD_HTTP_PORT, CLASSD_GENERATION_WEEKS, CLASSD_SWEEP_INTERVAL"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("rejects unknown timezones", func(t *testing.T) {
		clearEnvironment(t)
		t.Setenv("CLASSD_TOKEN_SECRET", "secret")
		t.Setenv("CLASSD_TIMEZONE", "Mars/Olympus")

		_, err := Load()
		if err == nil {
			t.Fatal("expected error for unknown timezone")
		}
	})
}

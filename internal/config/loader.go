package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures environment driven configuration values for the class
// scheduler service.
type Config struct {
	HTTPPort            int
	SQLiteDSN           string
	TokenSecret         string
	TokenDefaultMinutes int
	Timezone            string
	GenerationWeeks     int
	GenerationInterval  time.Duration
	SweepInterval       time.Duration
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults; required and malformed values are
// collected and reported together so a broken deployment surfaces every
// problem in one pass.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:            8080,
		SQLiteDSN:           "file:classd.db",
		TokenDefaultMinutes: 60,
		Timezone:            "UTC",
		GenerationWeeks:     4,
		GenerationInterval:  time.Hour,
		SweepInterval:       15 * time.Minute,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("CLASSD_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "CLASSD_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("CLASSD_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("CLASSD_TOKEN_SECRET")); secret == "" {
		missing = append(missing, "CLASSD_TOKEN_SECRET")
	} else {
		cfg.TokenSecret = secret
	}

	if minutesValue := strings.TrimSpace(os.Getenv("CLASSD_TOKEN_DEFAULT_MINUTES")); minutesValue != "" {
		minutes, err := strconv.Atoi(minutesValue)
		if err != nil || minutes <= 0 {
			invalid = append(invalid, "CLASSD_TOKEN_DEFAULT_MINUTES")
		} else {
			cfg.TokenDefaultMinutes = minutes
		}
	}

	if tz := strings.TrimSpace(os.Getenv("CLASSD_TIMEZONE")); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			invalid = append(invalid, "CLASSD_TIMEZONE")
		} else {
			cfg.Timezone = tz
		}
	}

	if weeksValue := strings.TrimSpace(os.Getenv("CLASSD_GENERATION_WEEKS")); weeksValue != "" {
		weeks, err := strconv.Atoi(weeksValue)
		if err != nil || weeks <= 0 || weeks > 52 {
			invalid = append(invalid, "CLASSD_GENERATION_WEEKS")
		} else {
			cfg.GenerationWeeks = weeks
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("CLASSD_GENERATION_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "CLASSD_GENERATION_INTERVAL")
		} else {
			cfg.GenerationInterval = interval
		}
	}

	if intervalValue := strings.TrimSpace(os.Getenv("CLASSD_SWEEP_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "CLASSD_SWEEP_INTERVAL")
		} else {
			cfg.SweepInterval = interval
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

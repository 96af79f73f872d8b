// Package config reads MediTrack settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // display timezone must resolve on hosts without zoneinfo

	"github.com/joho/godotenv"
)

const (
	DefaultPort            = "3333"
	DefaultSQLitePath      = "data/meditrack.db"
	DefaultDisplayTimezone = "America/Sao_Paulo"
	DefaultUserID          = "66f6f7251e72438e25762bc2"
	DefaultAPIURL          = "http://localhost:3333"
	DefaultRateLimitRPS    = 5
	DefaultRateLimitBurst  = 30
	DefaultClientTimeout   = 10 * time.Second
	DefaultStaleTime       = 5 * time.Minute
)

// Config is shared by the API server and the terminal client. Fields that only
// one side uses are ignored by the other.
type Config struct {
	Port        string
	StoreDriver string // postgres, sqlite or memory
	DatabaseURL string
	SQLitePath  string

	// DisplayTimezone labels the grid and decides which day is "today".
	// The store itself keys on calendar date only.
	DisplayTimezone string
	Location        *time.Location

	DefaultUserID string

	MetricsUser    string
	MetricsPass    string
	PprofSecret    string
	RateLimitRPS   float64
	RateLimitBurst int
	AllowedOrigins []string

	APIURL        string
	ClientTimeout time.Duration
	StaleTime     time.Duration
}

// Load reads .env (if present) and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, filling zero values with the built-in
// defaults so callers always get a usable Config.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:            getenv("PORT"),
		StoreDriver:     strings.ToLower(getenv("STORE_DRIVER")),
		DatabaseURL:     getenv("DATABASE_URL"),
		SQLitePath:      getenv("SQLITE_PATH"),
		DisplayTimezone: getenv("DISPLAY_TIMEZONE"),
		DefaultUserID:   getenv("DEFAULT_USER_ID"),
		MetricsUser:     getenv("METRICS_USER"),
		MetricsPass:     getenv("METRICS_PASS"),
		PprofSecret:     getenv("PPROF_SECRET"),
		APIURL:          strings.TrimRight(getenv("MEDITRACK_API_URL"), "/"),
	}

	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = DefaultSQLitePath
	}
	if cfg.DisplayTimezone == "" {
		cfg.DisplayTimezone = DefaultDisplayTimezone
	}
	if cfg.DefaultUserID == "" {
		cfg.DefaultUserID = DefaultUserID
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}

	switch cfg.StoreDriver {
	case "":
		cfg.StoreDriver = "memory"
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = "postgres"
		}
	case "postgres":
		if cfg.DatabaseURL == "" {
			return cfg, fmt.Errorf("DATABASE_URL environment variable is not set")
		}
	case "sqlite", "memory":
	default:
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, sqlite or memory)", cfg.StoreDriver)
	}

	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return cfg, fmt.Errorf("loading DISPLAY_TIMEZONE %q: %w", cfg.DisplayTimezone, err)
	}
	cfg.Location = loc

	if cfg.RateLimitRPS, err = floatOr(getenv("RATE_LIMIT_RPS"), DefaultRateLimitRPS); err != nil {
		return cfg, fmt.Errorf("parsing RATE_LIMIT_RPS: %w", err)
	}
	if cfg.RateLimitBurst, err = intOr(getenv("RATE_LIMIT_BURST"), DefaultRateLimitBurst); err != nil {
		return cfg, fmt.Errorf("parsing RATE_LIMIT_BURST: %w", err)
	}
	if cfg.ClientTimeout, err = durationOr(getenv("CLIENT_TIMEOUT"), DefaultClientTimeout); err != nil {
		return cfg, fmt.Errorf("parsing CLIENT_TIMEOUT: %w", err)
	}
	if cfg.StaleTime, err = durationOr(getenv("STALE_TIME"), DefaultStaleTime); err != nil {
		return cfg, fmt.Errorf("parsing STALE_TIME: %w", err)
	}

	cfg.AllowedOrigins = []string{"*"}
	if origins := getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = nil
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg, nil
}

// StoreDSN is the connection string for the configured driver.
func (c Config) StoreDSN() string {
	switch c.StoreDriver {
	case "postgres":
		return c.DatabaseURL
	case "sqlite":
		return c.SQLitePath
	}
	return ""
}

func floatOr(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

func intOr(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

func durationOr(s string, def time.Duration) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

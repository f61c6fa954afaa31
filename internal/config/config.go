package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"golang.org/x/text/language"
)

// Ledger backends for the audit worker.
const (
	LedgerMemory = "memory"
	LedgerSheets = "sheets"
)

type Config struct {
	// HTTP Server
	Port           string   `env:"PORT" envDefault:"8081"`
	CookieSecure   bool     `env:"COOKIE_SECURE" envDefault:"false"`
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	// Entity Store
	APIBaseURL   string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	APITimeout   time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	PageSize     int           `env:"PAGE_SIZE" envDefault:"10"`
	OptionsLimit int           `env:"OPTIONS_LIMIT" envDefault:"100"`
	// ExportParallel bounds concurrent page fetches of an XLSX export.
	ExportParallel int `env:"EXPORT_PARALLEL" envDefault:"4"`

	// Local state
	SQLiteDBPath string        `env:"SQLITE_DB_PATH" envDefault:"./data/finconsole.db"`
	SessionTTL   time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// Display
	CurrencyCode string `env:"CURRENCY_CODE" envDefault:"VND"`
	NumberLocale string `env:"NUMBER_LOCALE" envDefault:"vi-VN"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"finconsole"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"audit_events"`

	// Google Sheets ledger
	GoogleSpreadsheetID       string `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleLedgerSheet         string `env:"GOOGLE_LEDGER_SHEET" envDefault:"Audit"`
	GoogleServiceAccountJSON  string `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	GoogleServiceAccountFile  string `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleApplicationCredFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`

	// Worker
	LedgerBackend       string `env:"LEDGER_BACKEND" envDefault:"memory"`
	LedgerSweepSchedule string `env:"LEDGER_SWEEP_SCHEDULE" envDefault:"@every 1m"`
	LedgerBatchSize     int    `env:"LEDGER_BATCH_SIZE" envDefault:"50"`

	// Operations
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"5m"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat          string        `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the configuration from the environment. Call
// cli.LoadEnvFile first to pick up a .env file.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	cfg.APIBaseURL = strings.TrimRight(strings.TrimSpace(cfg.APIBaseURL), "/")
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate Entity Store URL
	if parsedURL, err := url.Parse(c.APIBaseURL); err != nil || c.APIBaseURL == "" {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s'", c.APIBaseURL))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.APITimeout < time.Second || c.APITimeout > 2*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be between 1 second and 2 minutes", c.APITimeout))
	}

	if c.PageSize < 1 || c.PageSize > 100 {
		errors = append(errors, fmt.Sprintf("invalid page size %d: must be between 1 and 100", c.PageSize))
	}
	if c.OptionsLimit < 1 || c.OptionsLimit > 1000 {
		errors = append(errors, fmt.Sprintf("invalid options limit %d: must be between 1 and 1000", c.OptionsLimit))
	}
	if c.ExportParallel < 1 || c.ExportParallel > 16 {
		errors = append(errors, fmt.Sprintf("invalid export parallelism %d: must be between 1 and 16", c.ExportParallel))
	}

	// Validate SQLite configuration
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}

	// Validate display settings
	if money.GetCurrency(c.CurrencyCode) == nil {
		errors = append(errors, fmt.Sprintf("unknown currency code '%s'", c.CurrencyCode))
	}
	if _, err := language.Parse(c.NumberLocale); err != nil {
		errors = append(errors, fmt.Sprintf("invalid number locale '%s': %v", c.NumberLocale, err))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate ledger backend
	switch c.LedgerBackend {
	case LedgerMemory:
	case LedgerSheets:
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets ledger")
		}
		if c.GoogleLedgerSheet == "" {
			errors = append(errors, "Google ledger sheet name is required when using sheets ledger")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && c.GoogleApplicationCredFile == "" {
			errors = append(errors, "one of GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS must be provided for sheets ledger")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid ledger backend '%s': must be one of [%s %s]", c.LedgerBackend, LedgerMemory, LedgerSheets))
	}

	if _, err := cron.ParseStandard(c.LedgerSweepSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid ledger sweep schedule '%s': %v", c.LedgerSweepSchedule, err))
	}
	if c.LedgerBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid ledger batch size %d: must be at least 1", c.LedgerBatchSize))
	} else if c.LedgerBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid ledger batch size %d: must be at most 1000", c.LedgerBatchSize))
	}

	// Validate operations
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.CacheTTL < time.Second || c.CacheTTL > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be between 1 second and 24 hours", c.CacheTTL))
	}
	if _, err := c.SlogLevel(); err != nil {
		errors = append(errors, err.Error())
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel)
	}
	return level, nil
}

// Addr is the listen address of the console.
func (c *Config) Addr() string { return ":" + c.Port }

// AMQPEnabled reports whether audit events are published.
func (c *Config) AMQPEnabled() bool { return c.AMQPURL != "" }

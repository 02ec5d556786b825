package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"blocks/internal/log"
)

type Config struct {
	// HTTP Server
	Port string

	// Store
	StoreBackend string
	SQLiteDBPath string

	// Remote feed
	FeedBaseURL   string
	FeedToken     string
	FeedTimeout   time.Duration
	FeedCacheSize int
	FeedCacheTTL  time.Duration

	// AMQP (optional)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets report export (optional)
	GoogleSpreadsheetID      string
	ReportSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// OAuth user credentials, used instead of a service account when set
	GoogleOAuthClientJSON string
	GoogleOAuthClientFile string
	GoogleOAuthTokenJSON  string
	GoogleOAuthTokenFile  string

	// Worker
	SyncInterval   time.Duration
	CategoryMaxAge time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		StoreBackend: getEnv("STORE_BACKEND", "sqlite"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/blocks.db"),

		FeedBaseURL:   getEnv("FEED_BASE_URL", ""),
		FeedToken:     getEnv("FEED_TOKEN", ""),
		FeedTimeout:   getEnvDuration("FEED_TIMEOUT", 30*time.Second),
		FeedCacheSize: getEnvInt("FEED_CACHE_SIZE", 16),
		FeedCacheTTL:  getEnvDuration("FEED_CACHE_TTL", 10*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "blocks"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_requests"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		ReportSheetName:          getEnv("GOOGLE_REPORT_SHEET_NAME", "Budget"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleOAuthClientJSON:    getEnv("GOOGLE_OAUTH_CLIENT_JSON", ""),
		GoogleOAuthClientFile:    getEnv("GOOGLE_OAUTH_CLIENT_FILE", ""),
		GoogleOAuthTokenJSON:     getEnv("GOOGLE_OAUTH_TOKEN_JSON", ""),
		GoogleOAuthTokenFile:     getEnv("GOOGLE_OAUTH_TOKEN_FILE", ""),

		SyncInterval:   getEnvDuration("SYNC_INTERVAL", 15*time.Minute),
		CategoryMaxAge: getEnvDuration("CATEGORY_MAX_AGE", 7*24*time.Hour),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	return cfg
}

// AMQPEnabled reports whether sync requests go through a broker.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// ReportEnabled reports whether budget reports are exported to Google Sheets.
func (c *Config) ReportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
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

	// Validate store backend
	validBackends := []string{"memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.StoreBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.StoreBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
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
	}

	// Validate feed
	if c.FeedBaseURL == "" {
		errors = append(errors, "FEED_BASE_URL is required")
	} else if parsedURL, err := url.Parse(c.FeedBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid feed URL '%s': %v", c.FeedBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid feed URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}
	if c.FeedTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid feed timeout %v: must be at least 1 second", c.FeedTimeout))
	} else if c.FeedTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid feed timeout %v: must be at most 5 minutes", c.FeedTimeout))
	}
	if c.FeedCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid feed cache size %d: must be at least 1", c.FeedCacheSize))
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

	// Validate report export if a spreadsheet is configured
	if c.GoogleSpreadsheetID != "" {
		if c.ReportSheetName == "" {
			errors = append(errors, "report sheet name is required when GOOGLE_SPREADSHEET_ID is set")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}

		hasClient := c.GoogleOAuthClientFile != "" || c.GoogleOAuthClientJSON != ""
		hasToken := c.GoogleOAuthTokenFile != "" || c.GoogleOAuthTokenJSON != ""
		if hasClient && !hasToken {
			errors = append(errors, "either GOOGLE_OAUTH_TOKEN_FILE or GOOGLE_OAUTH_TOKEN_JSON must be provided with an OAuth client")
		}
		if hasToken && !hasClient {
			errors = append(errors, "either GOOGLE_OAUTH_CLIENT_FILE or GOOGLE_OAUTH_CLIENT_JSON must be provided with an OAuth token")
		}
		if c.GoogleOAuthClientFile != "" {
			if _, err := os.Stat(c.GoogleOAuthClientFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth client file does not exist: %s", c.GoogleOAuthClientFile))
			}
		}
		if c.GoogleOAuthTokenFile != "" {
			if _, err := os.Stat(c.GoogleOAuthTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleOAuthTokenFile))
			}
		}
	}

	// Validate worker configuration
	if c.SyncInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at least 1 second", c.SyncInterval))
	} else if c.SyncInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync interval %v: must be at most 24 hours", c.SyncInterval))
	}
	if c.CategoryMaxAge < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid category max age %v: must be at least 1 minute", c.CategoryMaxAge))
	}

	// Validate logging
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
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

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

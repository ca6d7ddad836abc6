package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	DBPath string

	// AMQP change events (optional; empty URL disables events)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Export snapshot worker
	ExportDir        string
	ExportFilterDays int

	// Google Sheets export (optional; empty spreadsheet id disables it)
	SheetsSpreadsheetID   string
	SheetsSheetName       string
	SheetsCredentialsFile string
	SheetsCredentialsJSON string

	// Logging
	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:   getEnv("PORT", "8082"),
		DBPath: getEnv("DB_PATH", "./data/spendbook.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendbook"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_changes"),

		ExportDir:        getEnv("EXPORT_DIR", "./data/exports"),
		ExportFilterDays: getEnvInt("EXPORT_FILTER_DAYS", 7),

		SheetsSpreadsheetID:   getEnv("SHEETS_SPREADSHEET_ID", ""),
		SheetsSheetName:       getEnv("SHEETS_SHEET_NAME", "Expenses"),
		SheetsCredentialsFile: getEnv("SHEETS_CREDENTIALS_FILE", ""),
		SheetsCredentialsJSON: getEnv("SHEETS_CREDENTIALS_JSON", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks the configuration, collecting every problem into one error.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.DBPath == "" {
		problems = append(problems, "database path cannot be empty")
	} else if dir := filepath.Dir(c.DBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				problems = append(problems, fmt.Sprintf("cannot create database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportDir == "" {
		problems = append(problems, "export directory cannot be empty")
	}
	if c.ExportFilterDays < 1 {
		problems = append(problems, fmt.Sprintf("invalid export filter days %d: must be at least 1", c.ExportFilterDays))
	}

	if c.SheetsSpreadsheetID != "" && c.SheetsSheetName == "" {
		problems = append(problems, "sheet name cannot be empty when a spreadsheet id is provided")
	}
	if c.SheetsCredentialsFile != "" {
		if _, err := os.Stat(c.SheetsCredentialsFile); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("sheets credentials file does not exist: %s", c.SheetsCredentialsFile))
		}
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

// EventsEnabled reports whether change events are configured.
func (c *Config) EventsEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether the Sheets export target is configured.
func (c *Config) SheetsEnabled() bool {
	return c.SheetsSpreadsheetID != ""
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

package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loadStruct recursively populates struct fields from environment variables.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct && field.Type != reflect.TypeOf(time.Time{}) {
			if err := loadStruct(fieldVal); err != nil {
				return err
			}
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		value := os.Getenv(envName)
		if alt := field.Tag.Get("envAlt"); value == "" && alt != "" {
			value = os.Getenv(alt)
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				return fmt.Errorf("required environment variable %s is not set", envName)
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", envName, value, err)
		}
	}

	return nil
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				result = append(result, p)
			}
		}
		field.Set(reflect.ValueOf(result))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PG_PORT (%d) must be 1-65535", c.Database.Port))
	}
	if c.Database.Schema == "" {
		errs = append(errs, "PG_SCHEMA must not be empty")
	}
	if c.Database.ConnectTimeout < 0 {
		errs = append(errs, "PG_CONNECT_TIMEOUT must be non-negative")
	}
	if c.Database.StatementTimeout < 0 {
		errs = append(errs, "PG_STATEMENT_TIMEOUT must be non-negative")
	}

	// Load
	if c.Load.Table == "" {
		errs = append(errs, "LOAD_TABLE must not be empty")
	}
	if _, err := c.Load.AsOfDate(time.Now()); err != nil {
		errs = append(errs, fmt.Sprintf("LOAD_AS_OF (%q) must be YYYY-MM-DD", c.Load.AsOf))
	}

	// Batch
	if c.Batch.QueriesDir == "" && c.Batch.ViewsDir == "" {
		errs = append(errs, "at least one of SQL_QUERIES_DIR or SQL_VIEWS_DIR must be set")
	}
	if c.Batch.OutputDir == "" {
		errs = append(errs, "OUTPUT_DIR must not be empty")
	}
	if c.Batch.PreviewRows < 0 {
		errs = append(errs, "BATCH_PREVIEW_ROWS must be non-negative")
	}

	// Report
	if c.Report.Timeout <= 0 {
		errs = append(errs, "REPORT_TIMEOUT must be positive")
	}

	// Schedule
	if _, err := cron.ParseStandard(c.Schedule.Spec); err != nil {
		errs = append(errs, fmt.Sprintf("PIPELINE_SCHEDULE (%q) is not a valid cron spec: %v", c.Schedule.Spec, err))
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Logging
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// The database password is masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Database: {Host: %q, Port: %d, User: %q, Password: [MASKED], Name: %q, Schema: %q}, ",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Name, c.Database.Schema)
	fmt.Fprintf(&b, "Load: {SourceFile: %q, Table: %q, AsOf: %q}, ",
		c.Load.SourceFile, c.Load.Table, c.Load.AsOf)
	fmt.Fprintf(&b, "Batch: {Dirs: %v, OutputDir: %q}, ", c.Batch.SearchDirs(), c.Batch.OutputDir)
	fmt.Fprintf(&b, "Results: {Bucket: %q}, ", c.Results.Bucket)
	fmt.Fprintf(&b, "Server: {Addr: %q, APIKeys: [%d MASKED]}, ", c.Server.Addr(), len(c.Server.APIKeys))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}

// Package config provides centralized configuration management for the pipeline.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all pipeline configuration.
// All settings can be configured via environment variables.
type Config struct {
	Database DatabaseConfig
	Load     LoadConfig
	Batch    BatchConfig
	Report   ReportConfig
	Results  ResultsConfig
	Schedule ScheduleConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Host is the database host (default: localhost)
	Host string `env:"PG_HOST" default:"localhost"`

	// Port is the database port (default: 5432)
	Port int `env:"PG_PORT" default:"5432"`

	// User is the login role (required)
	User string `env:"PG_USER" required:"true"`

	// Password is the login password (required)
	Password string `env:"PG_PASSWORD" required:"true"`

	// Name is the database name (required)
	Name string `env:"PG_DATABASE" envAlt:"PG_DB" required:"true"`

	// Schema is the target namespace for the loaded table and run log (default: public)
	Schema string `env:"PG_SCHEMA" default:"public"`

	// SSLMode is passed through to libpq-style connection strings (default: disable)
	SSLMode string `env:"PG_SSLMODE" default:"disable"`

	// ConnectTimeout bounds connection establishment (default: 10s)
	ConnectTimeout time.Duration `env:"PG_CONNECT_TIMEOUT" default:"10s"`

	// StatementTimeout is applied server-side to every statement; 0 disables it.
	StatementTimeout time.Duration `env:"PG_STATEMENT_TIMEOUT" default:"0s"`
}

// LoadConfig holds settings for the load stage.
type LoadConfig struct {
	// SourceFile is the CSV handed over by the acquisition step.
	// Required by the run and load commands only.
	SourceFile string `env:"LOAD_SOURCE_FILE"`

	// Table is the registered table definition to load into (default: retail_sales)
	Table string `env:"LOAD_TABLE" default:"retail_sales"`

	// AsOf overrides the logical as-of date (YYYY-MM-DD). Empty means today.
	AsOf string `env:"LOAD_AS_OF"`

	// StampColumn is filled with the as-of date when the dataset lacks it (default: ds)
	StampColumn string `env:"LOAD_STAMP_COLUMN" default:"ds"`
}

// BatchConfig holds settings for the SQL batch stage.
type BatchConfig struct {
	// QueriesDir holds the analyst query files (default: sql/sql_queries)
	QueriesDir string `env:"SQL_QUERIES_DIR" default:"sql/sql_queries"`

	// ViewsDir holds the view definition files (default: sql/views)
	ViewsDir string `env:"SQL_VIEWS_DIR" default:"sql/views"`

	// OutputDir receives one CSV per READ file (default: data_outputs/bi)
	OutputDir string `env:"OUTPUT_DIR" default:"data_outputs/bi"`

	// PreviewRows is how many result rows are logged per READ file (default: 5)
	PreviewRows int `env:"BATCH_PREVIEW_ROWS" default:"5"`
}

// ReportConfig holds settings for the report stage.
type ReportConfig struct {
	// Command is the external report builder as comma-separated argv.
	// The output directory is appended as its last argument. Empty skips the stage.
	Command []string `env:"REPORT_COMMAND"`

	// Timeout bounds the report command (default: 10m)
	Timeout time.Duration `env:"REPORT_TIMEOUT" default:"10m"`
}

// ResultsConfig holds settings for the optional S3 mirror of result files.
type ResultsConfig struct {
	// Bucket enables the mirror when set.
	Bucket string `env:"RESULTS_S3_BUCKET"`

	// Prefix is prepended to every object key (default: bi/)
	Prefix string `env:"RESULTS_S3_PREFIX" default:"bi/"`

	// Region is the bucket region (default: us-east-1)
	Region string `env:"RESULTS_S3_REGION" default:"us-east-1"`

	// Endpoint overrides the S3 endpoint (MinIO, LocalStack)
	Endpoint string `env:"RESULTS_S3_ENDPOINT"`

	// UsePathStyle enables path-style addressing (default: false)
	UsePathStyle bool `env:"RESULTS_S3_PATH_STYLE" default:"false"`
}

// ScheduleConfig holds settings for the schedule command.
type ScheduleConfig struct {
	// Spec is a standard 5-field cron expression or descriptor (@daily).
	Spec string `env:"PIPELINE_SCHEDULE" default:"@daily"`
}

// ServerConfig holds HTTP server settings for the serve command.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// APIKeys guard the trigger endpoint (X-API-Key). Empty leaves it open.
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies are CIDRs whose X-Real-IP / X-Forwarded-For headers are honored.
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// ConnString returns a postgres:// URL for pgx.ParseConfig.
func (c *DatabaseConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Name,
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	if c.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(c.ConnectTimeout.Seconds())))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// SearchDirs returns the batch directories in execution order.
func (c *BatchConfig) SearchDirs() []string {
	return []string{c.QueriesDir, c.ViewsDir}
}

// AsOfDate parses the configured as-of date, falling back to now.
func (c *LoadConfig) AsOfDate(now time.Time) (time.Time, error) {
	if c.AsOf == "" {
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse(time.DateOnly, c.AsOf)
	if err != nil {
		return time.Time{}, fmt.Errorf("LOAD_AS_OF %q: %w", c.AsOf, err)
	}
	return t, nil
}

// RequireSource reports an error when no source file is configured.
func (c *LoadConfig) RequireSource() error {
	if c.SourceFile == "" {
		return fmt.Errorf("LOAD_SOURCE_FILE is required for the load stage")
	}
	return nil
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

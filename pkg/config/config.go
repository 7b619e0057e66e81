// Package config handles cypherkit configuration via YAML files and environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--config, --dry-run, etc.)
//  2. Environment variables (CYPHERKIT_*)
//  3. Config file (cypherkit.yaml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
//	fmt.Printf("Graph server: %s\n", cfg.Connection.URI())
//
// Environment Variables (all use CYPHERKIT_ prefix):
//
// Connection:
//   - CYPHERKIT_HOST="localhost"
//   - CYPHERKIT_PORT=7687
//   - CYPHERKIT_USER="neo4j"
//   - CYPHERKIT_PASS="secret"
//   - CYPHERKIT_HTTPS=true
//   - CYPHERKIT_DATABASE="neo4j"
//
// Logging:
//   - CYPHERKIT_LOG_LEVEL="info"
//   - CYPHERKIT_LOG_FORMAT="json"
//   - CYPHERKIT_LOG_OUTPUT="stderr"
//   - CYPHERKIT_LOG_QUERIES=true
//
// Outbox and schema:
//   - CYPHERKIT_OUTBOX_ENABLED=true
//   - CYPHERKIT_OUTBOX_DIR="./data/outbox"
//   - CYPHERKIT_SCHEMA_CONCURRENCY=4
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all cypherkit configuration.
//
// Configuration is organized into logical sections:
//   - Connection: graph server address and driver pool settings
//   - Logging: logger construction and query logging
//   - Outbox: local queue for statements that could not be delivered
//   - Schema: constraints and indexes kept in sync by "schema update"
type Config struct {
	Connection ConnectionConfig
	Logging    LoggingConfig
	Outbox     OutboxConfig
	Schema     SchemaConfig
}

// ConnectionConfig holds the graph server connection settings.
type ConnectionConfig struct {
	Host string
	Port int
	User string
	// Pass is never included in String output
	Pass string
	// HTTPS selects an encrypted connection (neo4j+s://)
	HTTPS bool
	// Database name; empty uses the server default
	Database string

	MaxConnectionPoolSize   int
	ConnectionTimeout       time.Duration
	MaxTransactionRetryTime time.Duration
}

// URI returns the driver URI for the connection.
func (c ConnectionConfig) URI() string {
	scheme := "neo4j"
	if c.HTTPS {
		scheme = "neo4j+s"
	}
	return scheme + "://" + net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (debug, info, warn, error)
	Level string
	// Format (json, console)
	Format string
	// Output path (stdout, stderr, or file path)
	Output string
	// QueryLogEnabled logs every statement sent to the server at debug level
	QueryLogEnabled bool
	// SlowQueryThreshold logs statements slower than this at warn level
	SlowQueryThreshold time.Duration
}

// OutboxConfig holds the undelivered statement queue settings.
type OutboxConfig struct {
	Enabled  bool
	Dir      string
	InMemory bool
}

// SchemaTarget names one label/property pair.
type SchemaTarget struct {
	Label    string `yaml:"label"`
	Property string `yaml:"property"`
}

// String returns "Label.property".
func (t SchemaTarget) String() string {
	return t.Label + "." + t.Property
}

// ParseSchemaTarget parses "Label.property".
func ParseSchemaTarget(s string) (SchemaTarget, error) {
	label, prop, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok || label == "" || prop == "" {
		return SchemaTarget{}, fmt.Errorf("invalid schema target %q, expected Label.property", s)
	}
	return SchemaTarget{Label: label, Property: prop}, nil
}

// SchemaConfig lists the constraints and indexes to synchronise.
type SchemaConfig struct {
	// Concurrency is how many labels are synchronised at once
	Concurrency int
	Constraints []SchemaTarget
	Indexes     []SchemaTarget
}

// Validate checks the configuration for values the client cannot work with.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if c.Connection.Host == "" {
		return fmt.Errorf("connection host is required")
	}
	if c.Connection.Port <= 0 || c.Connection.Port > 65535 {
		return fmt.Errorf("invalid connection port: %d", c.Connection.Port)
	}
	if c.Connection.MaxConnectionPoolSize <= 0 {
		return fmt.Errorf("invalid max connection pool size: %d", c.Connection.MaxConnectionPoolSize)
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q", c.Logging.Format)
	}

	if c.Outbox.Enabled && !c.Outbox.InMemory && c.Outbox.Dir == "" {
		return fmt.Errorf("outbox enabled but no directory provided")
	}

	if c.Schema.Concurrency <= 0 {
		return fmt.Errorf("invalid schema concurrency: %d", c.Schema.Concurrency)
	}
	for _, t := range c.Schema.Constraints {
		if t.Label == "" || t.Property == "" {
			return fmt.Errorf("constraint %q needs both label and property", t.String())
		}
	}
	for _, t := range c.Schema.Indexes {
		if t.Label == "" || t.Property == "" {
			return fmt.Errorf("index %q needs both label and property", t.String())
		}
	}

	return nil
}

// String returns a safe string representation of the Config.
//
// The password is NOT included in the output, making this safe for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{URI: %s, User: %s, Database: %s, Outbox: %v, Constraints: %d, Indexes: %d}",
		c.Connection.URI(), c.Connection.User, c.Connection.Database,
		c.Outbox.Enabled, len(c.Schema.Constraints), len(c.Schema.Indexes),
	)
}

// YAMLConfig represents the YAML configuration file structure.
// Booleans that default to true are pointers so a file can switch them off.
type YAMLConfig struct {
	Connection struct {
		Host                    string `yaml:"host"`
		Port                    int    `yaml:"port"`
		User                    string `yaml:"user"`
		Pass                    string `yaml:"pass"`
		HTTPS                   *bool  `yaml:"https"`
		Database                string `yaml:"database"`
		MaxConnectionPoolSize   int    `yaml:"max_connection_pool_size"`
		ConnectionTimeout       string `yaml:"connection_timeout"`
		MaxTransactionRetryTime string `yaml:"max_transaction_retry_time"`
	} `yaml:"connection"`

	Logging struct {
		Level              string `yaml:"level"`
		Format             string `yaml:"format"`
		Output             string `yaml:"output"`
		QueryLogEnabled    bool   `yaml:"query_log_enabled"`
		SlowQueryThreshold string `yaml:"slow_query_threshold"`
	} `yaml:"logging"`

	Outbox struct {
		Enabled  bool   `yaml:"enabled"`
		Dir      string `yaml:"dir"`
		InMemory bool   `yaml:"in_memory"`
	} `yaml:"outbox"`

	Schema struct {
		Concurrency int            `yaml:"concurrency"`
		Constraints []SchemaTarget `yaml:"constraints"`
		Indexes     []SchemaTarget `yaml:"indexes"`
	} `yaml:"schema"`
}

// LoadDefaults returns a Config with built-in defaults only.
//
// Precedence applied by LoadFromFile:
//  1. Built-in defaults (this function)
//  2. Config file (YAML)
//  3. Environment variables
//  4. Command-line arguments (applied in main.go)
func LoadDefaults() *Config {
	config := &Config{}

	config.Connection.Host = "localhost"
	config.Connection.Port = 7687
	config.Connection.User = "neo4j"
	config.Connection.HTTPS = true
	config.Connection.MaxConnectionPoolSize = 100
	config.Connection.ConnectionTimeout = 30 * time.Second
	config.Connection.MaxTransactionRetryTime = 30 * time.Second

	config.Logging.Level = "info"
	config.Logging.Format = "console"
	config.Logging.Output = "stderr"
	config.Logging.SlowQueryThreshold = time.Second

	config.Outbox.Dir = "./data/outbox"

	config.Schema.Concurrency = 4

	return config
}

// LoadFromEnv returns defaults overridden by CYPHERKIT_* environment variables.
func LoadFromEnv() *Config {
	config := LoadDefaults()
	applyEnvVars(config)
	return config
}

// LoadFromFile loads configuration from a YAML file, then applies environment
// variables on top. A missing file is not an error: defaults plus environment
// are returned.
//
// Example config file:
//
//	connection:
//	  host: graph.internal
//	  port: 7687
//	  user: neo4j
//	  pass: secret
//	  https: false
//	schema:
//	  constraints:
//	    - {label: City, property: id}
//	  indexes:
//	    - {label: City, property: name}
func LoadFromFile(configPath string) (*Config, error) {
	config := LoadDefaults()

	if configPath == "" {
		applyEnvVars(config)
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvVars(config)
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// === Connection ===
	if yamlCfg.Connection.Host != "" {
		config.Connection.Host = yamlCfg.Connection.Host
	}
	if yamlCfg.Connection.Port > 0 {
		config.Connection.Port = yamlCfg.Connection.Port
	}
	if yamlCfg.Connection.User != "" {
		config.Connection.User = yamlCfg.Connection.User
	}
	if yamlCfg.Connection.Pass != "" {
		config.Connection.Pass = yamlCfg.Connection.Pass
	}
	if yamlCfg.Connection.HTTPS != nil {
		config.Connection.HTTPS = *yamlCfg.Connection.HTTPS
	}
	if yamlCfg.Connection.Database != "" {
		config.Connection.Database = yamlCfg.Connection.Database
	}
	if yamlCfg.Connection.MaxConnectionPoolSize > 0 {
		config.Connection.MaxConnectionPoolSize = yamlCfg.Connection.MaxConnectionPoolSize
	}
	if d, err := parseDuration(yamlCfg.Connection.ConnectionTimeout); err != nil {
		return nil, fmt.Errorf("connection.connection_timeout: %w", err)
	} else if d > 0 {
		config.Connection.ConnectionTimeout = d
	}
	if d, err := parseDuration(yamlCfg.Connection.MaxTransactionRetryTime); err != nil {
		return nil, fmt.Errorf("connection.max_transaction_retry_time: %w", err)
	} else if d > 0 {
		config.Connection.MaxTransactionRetryTime = d
	}

	// === Logging ===
	if yamlCfg.Logging.Level != "" {
		config.Logging.Level = yamlCfg.Logging.Level
	}
	if yamlCfg.Logging.Format != "" {
		config.Logging.Format = yamlCfg.Logging.Format
	}
	if yamlCfg.Logging.Output != "" {
		config.Logging.Output = yamlCfg.Logging.Output
	}
	if yamlCfg.Logging.QueryLogEnabled {
		config.Logging.QueryLogEnabled = true
	}
	if d, err := parseDuration(yamlCfg.Logging.SlowQueryThreshold); err != nil {
		return nil, fmt.Errorf("logging.slow_query_threshold: %w", err)
	} else if d > 0 {
		config.Logging.SlowQueryThreshold = d
	}

	// === Outbox ===
	if yamlCfg.Outbox.Enabled {
		config.Outbox.Enabled = true
	}
	if yamlCfg.Outbox.Dir != "" {
		config.Outbox.Dir = yamlCfg.Outbox.Dir
	}
	if yamlCfg.Outbox.InMemory {
		config.Outbox.InMemory = true
	}

	// === Schema ===
	if yamlCfg.Schema.Concurrency > 0 {
		config.Schema.Concurrency = yamlCfg.Schema.Concurrency
	}
	config.Schema.Constraints = append(config.Schema.Constraints, yamlCfg.Schema.Constraints...)
	config.Schema.Indexes = append(config.Schema.Indexes, yamlCfg.Schema.Indexes...)

	applyEnvVars(config)
	return config, nil
}

// applyEnvVars overrides config with any CYPHERKIT_* variable that is set.
func applyEnvVars(config *Config) {
	config.Connection.Host = getEnv("CYPHERKIT_HOST", config.Connection.Host)
	config.Connection.Port = getEnvInt("CYPHERKIT_PORT", config.Connection.Port)
	config.Connection.User = getEnv("CYPHERKIT_USER", config.Connection.User)
	config.Connection.Pass = getEnv("CYPHERKIT_PASS", config.Connection.Pass)
	config.Connection.HTTPS = getEnvBool("CYPHERKIT_HTTPS", config.Connection.HTTPS)
	config.Connection.Database = getEnv("CYPHERKIT_DATABASE", config.Connection.Database)
	config.Connection.MaxConnectionPoolSize = getEnvInt("CYPHERKIT_MAX_POOL_SIZE", config.Connection.MaxConnectionPoolSize)
	config.Connection.ConnectionTimeout = getEnvDuration("CYPHERKIT_CONNECTION_TIMEOUT", config.Connection.ConnectionTimeout)

	config.Logging.Level = getEnv("CYPHERKIT_LOG_LEVEL", config.Logging.Level)
	config.Logging.Format = getEnv("CYPHERKIT_LOG_FORMAT", config.Logging.Format)
	config.Logging.Output = getEnv("CYPHERKIT_LOG_OUTPUT", config.Logging.Output)
	config.Logging.QueryLogEnabled = getEnvBool("CYPHERKIT_LOG_QUERIES", config.Logging.QueryLogEnabled)
	config.Logging.SlowQueryThreshold = getEnvDuration("CYPHERKIT_SLOW_QUERY_THRESHOLD", config.Logging.SlowQueryThreshold)

	config.Outbox.Enabled = getEnvBool("CYPHERKIT_OUTBOX_ENABLED", config.Outbox.Enabled)
	config.Outbox.Dir = getEnv("CYPHERKIT_OUTBOX_DIR", config.Outbox.Dir)

	config.Schema.Concurrency = getEnvInt("CYPHERKIT_SCHEMA_CONCURRENCY", config.Schema.Concurrency)
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first config file found, or empty string if none found.
// Search order:
//  1. Current working directory (cypherkit.yaml, config.yaml)
//  2. ~/.cypherkit/config.yaml
//  3. ~/.config/cypherkit/config.yaml (XDG)
func FindConfigFile() string {
	candidates := []string{"cypherkit.yaml", "config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".cypherkit", "config.yaml"),
			filepath.Join(home, ".config", "cypherkit", "config.yaml"),
		)
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := parseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

// parseDuration accepts Go duration strings and bare seconds. Empty is zero.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}

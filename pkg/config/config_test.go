package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadFromEnv_Defaults tests default values are loaded correctly.
func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg := LoadFromEnv()

	assert.Equal(t, "localhost", cfg.Connection.Host)
	assert.Equal(t, 7687, cfg.Connection.Port)
	assert.Equal(t, "neo4j", cfg.Connection.User)
	assert.Empty(t, cfg.Connection.Pass)
	assert.True(t, cfg.Connection.HTTPS, "encrypted connections are the default")
	assert.Equal(t, 100, cfg.Connection.MaxConnectionPoolSize)
	assert.Equal(t, 30*time.Second, cfg.Connection.ConnectionTimeout)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.False(t, cfg.Logging.QueryLogEnabled)
	assert.Equal(t, time.Second, cfg.Logging.SlowQueryThreshold)

	assert.False(t, cfg.Outbox.Enabled)
	assert.Equal(t, "./data/outbox", cfg.Outbox.Dir)
	assert.Equal(t, 4, cfg.Schema.Concurrency)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_CustomValues(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CYPHERKIT_HOST", "graph.internal")
	t.Setenv("CYPHERKIT_PORT", "7688")
	t.Setenv("CYPHERKIT_USER", "app")
	t.Setenv("CYPHERKIT_PASS", "s3cret")
	t.Setenv("CYPHERKIT_HTTPS", "false")
	t.Setenv("CYPHERKIT_DATABASE", "places")
	t.Setenv("CYPHERKIT_LOG_LEVEL", "debug")
	t.Setenv("CYPHERKIT_LOG_QUERIES", "yes")
	t.Setenv("CYPHERKIT_SLOW_QUERY_THRESHOLD", "250ms")
	t.Setenv("CYPHERKIT_OUTBOX_ENABLED", "1")
	t.Setenv("CYPHERKIT_SCHEMA_CONCURRENCY", "8")

	cfg := LoadFromEnv()

	assert.Equal(t, "graph.internal", cfg.Connection.Host)
	assert.Equal(t, 7688, cfg.Connection.Port)
	assert.Equal(t, "app", cfg.Connection.User)
	assert.Equal(t, "s3cret", cfg.Connection.Pass)
	assert.False(t, cfg.Connection.HTTPS)
	assert.Equal(t, "places", cfg.Connection.Database)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.QueryLogEnabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Logging.SlowQueryThreshold)
	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, 8, cfg.Schema.Concurrency)
}

func TestLoadFromEnv_InvalidNumbersKeepDefaults(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CYPHERKIT_PORT", "not-a-port")
	t.Setenv("CYPHERKIT_CONNECTION_TIMEOUT", "soon")

	cfg := LoadFromEnv()
	assert.Equal(t, 7687, cfg.Connection.Port)
	assert.Equal(t, 30*time.Second, cfg.Connection.ConnectionTimeout)
}

func TestConnectionConfig_URI(t *testing.T) {
	c := ConnectionConfig{Host: "db.example.com", Port: 7687, HTTPS: true}
	assert.Equal(t, "neo4j+s://db.example.com:7687", c.URI())

	c.HTTPS = false
	assert.Equal(t, "neo4j://db.example.com:7687", c.URI())

	c.Host = "::1"
	assert.Equal(t, "neo4j://[::1]:7687", c.URI())
}

func TestLoadFromFile(t *testing.T) {
	clearEnvVars(t)

	path := writeConfig(t, `
connection:
  host: graph.internal
  port: 7000
  user: app
  pass: secret
  https: false
  database: places
  connection_timeout: 5s
  max_transaction_retry_time: "10"
logging:
  level: debug
  format: json
  output: stdout
  query_log_enabled: true
outbox:
  enabled: true
  dir: /var/lib/cypherkit/outbox
schema:
  concurrency: 2
  constraints:
    - {label: City, property: id}
    - {label: Person, property: email}
  indexes:
    - {label: City, property: name}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "graph.internal", cfg.Connection.Host)
	assert.Equal(t, 7000, cfg.Connection.Port)
	assert.Equal(t, "secret", cfg.Connection.Pass)
	assert.False(t, cfg.Connection.HTTPS)
	assert.Equal(t, "places", cfg.Connection.Database)
	assert.Equal(t, 5*time.Second, cfg.Connection.ConnectionTimeout)
	assert.Equal(t, 10*time.Second, cfg.Connection.MaxTransactionRetryTime)

	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.True(t, cfg.Logging.QueryLogEnabled)

	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, "/var/lib/cypherkit/outbox", cfg.Outbox.Dir)

	assert.Equal(t, 2, cfg.Schema.Concurrency)
	assert.Equal(t, []SchemaTarget{{"City", "id"}, {"Person", "email"}}, cfg.Schema.Constraints)
	assert.Equal(t, []SchemaTarget{{"City", "name"}}, cfg.Schema.Indexes)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("CYPHERKIT_HOST", "from-env")

	path := writeConfig(t, "connection:\n  host: from-file\n  port: 7000\n")

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Connection.Host)
	assert.Equal(t, 7000, cfg.Connection.Port)
}

func TestLoadFromFile_HTTPSKeptWhenOmitted(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromFile(writeConfig(t, "connection:\n  host: h\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Connection.HTTPS)
}

func TestLoadFromFile_Missing(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, LoadDefaults().Connection, cfg.Connection)

	cfg, err = LoadFromFile("")
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Connection.Host)
}

func TestLoadFromFile_Errors(t *testing.T) {
	clearEnvVars(t)

	_, err := LoadFromFile(writeConfig(t, "connection: [not, a, map"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")

	_, err = LoadFromFile(writeConfig(t, "connection:\n  connection_timeout: later\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection.connection_timeout")

	_, err = LoadFromFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty host", func(c *Config) { c.Connection.Host = "" }, "host is required"},
		{"bad port", func(c *Config) { c.Connection.Port = 70000 }, "invalid connection port"},
		{"bad pool", func(c *Config) { c.Connection.MaxConnectionPoolSize = 0 }, "pool size"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
		{"upper level", func(c *Config) { c.Logging.Level = "WARN" }, ""},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "invalid log format"},
		{"outbox without dir", func(c *Config) { c.Outbox.Enabled = true; c.Outbox.Dir = "" }, "no directory"},
		{"in-memory outbox", func(c *Config) { c.Outbox.Enabled = true; c.Outbox.Dir = ""; c.Outbox.InMemory = true }, ""},
		{"bad concurrency", func(c *Config) { c.Schema.Concurrency = 0 }, "concurrency"},
		{"constraint without property", func(c *Config) {
			c.Schema.Constraints = []SchemaTarget{{Label: "City"}}
		}, "constraint"},
		{"index without label", func(c *Config) {
			c.Schema.Indexes = []SchemaTarget{{Property: "id"}}
		}, "index"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadDefaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_String(t *testing.T) {
	cfg := LoadDefaults()
	cfg.Connection.Pass = "super-secret"
	cfg.Schema.Constraints = []SchemaTarget{{"City", "id"}}

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "neo4j+s://localhost:7687")
	assert.Contains(t, s, "Constraints: 1")
}

func TestParseSchemaTarget(t *testing.T) {
	got, err := ParseSchemaTarget(" City.name ")
	require.NoError(t, err)
	assert.Equal(t, SchemaTarget{Label: "City", Property: "name"}, got)
	assert.Equal(t, "City.name", got.String())

	for _, bad := range []string{"", "City", ".name", "City."} {
		_, err := ParseSchemaTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	assert.Equal(t, "", FindConfigFile())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cypherkit.yaml"), []byte("{}"), 0o600))
	assert.Equal(t, "cypherkit.yaml", FindConfigFile())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cypherkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimLeft(content, "\n")), 0o600))
	return path
}

// clearEnvVars blanks every CYPHERKIT_* variable for the duration of the test.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "CYPHERKIT_") {
			t.Setenv(key, "")
		}
	}
}

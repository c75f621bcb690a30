package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/querybench/querybench/pkg/database"
)

const minimalConfig = `
global:
  log_level: info
benchmark:
  query: SELECT 1 FROM rdb$database
  repetitions: 10
  concurrency: 2
  run_timeout: 30s
  profile_timeout: 10m
servers:
  - id: fb1
    engine: firebird
    host: 10.0.0.10
    database: /data/bench.fdb
    user: SYSDBA
    password: masterkey
  - id: pg1
    engine: postgresql
    os: windows
    host: 10.0.0.11
    port: 5433
    database: bench
    user: bench
    password: bench
    query: SELECT 1
    repetitions: 5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Global.LogLevel)
	assert.Equal(t, "SELECT 1 FROM rdb$database", cfg.Benchmark.Query)
	assert.Equal(t, 10, cfg.Benchmark.Repetitions)
	assert.Equal(t, 2, cfg.Benchmark.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.Benchmark.RunTimeout)
	assert.Equal(t, 10*time.Minute, cfg.Benchmark.ProfileTimeout)

	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "fb1", cfg.Servers[0].ID)
	assert.Equal(t, "linux", cfg.Servers[0].OSType, "os defaults to linux")
	assert.Equal(t, 3050, cfg.Servers[0].Port, "port defaults per engine")
	assert.Equal(t, "windows", cfg.Servers[1].OSType)
	assert.Equal(t, 5433, cfg.Servers[1].Port, "explicit port wins")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
servers:
  - id: my1
    engine: mysql
    host: localhost
    database: bench
    user: bench
    password: bench
`))
	require.NoError(t, err)

	assert.Equal(t, DefaultLogLevel, cfg.Global.LogLevel)
	assert.Equal(t, DefaultQuery, cfg.Benchmark.Query)
	assert.Equal(t, DefaultRepetitions, cfg.Benchmark.Repetitions)
	assert.Equal(t, DefaultConcurrency, cfg.Benchmark.Concurrency)
	assert.Equal(t, DefaultMaxConnectFailures, cfg.Benchmark.MaxConnectFailures)
	assert.Equal(t, DefaultResultsDir, cfg.Output.ResultsDir)
	assert.True(t, cfg.Output.CSV)
	assert.True(t, cfg.Output.Console)
	assert.Equal(t, 3306, cfg.Servers[0].Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("QUERYBENCH_GLOBAL_LOG_LEVEL", "debug")
	t.Setenv("QUERYBENCH_BENCHMARK_REPETITIONS", "50")

	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Global.LogLevel)
	assert.Equal(t, 50, cfg.Benchmark.Repetitions)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(writeConfig(t, minimalConfig))
		require.NoError(t, err)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "no servers",
			mutate:  func(c *Config) { c.Servers = nil },
			wantErr: "at least one server",
		},
		{
			name:    "duplicate ids",
			mutate:  func(c *Config) { c.Servers[1].ID = "fb1" },
			wantErr: "duplicate id",
		},
		{
			name:    "missing id",
			mutate:  func(c *Config) { c.Servers[0].ID = "" },
			wantErr: "id is required",
		},
		{
			name:    "unknown engine",
			mutate:  func(c *Config) { c.Servers[0].Engine = "sybase" },
			wantErr: "unknown engine",
		},
		{
			name:    "missing host",
			mutate:  func(c *Config) { c.Servers[0].Host = "" },
			wantErr: "host is required",
		},
		{
			name:    "missing database",
			mutate:  func(c *Config) { c.Servers[0].Database = "" },
			wantErr: "database is required",
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.Servers[0].User = "" },
			wantErr: "user is required",
		},
		{
			name:    "missing password",
			mutate:  func(c *Config) { c.Servers[0].Password = "" },
			wantErr: "password is required",
		},
		{
			name:    "zero repetitions",
			mutate:  func(c *Config) { c.Benchmark.Repetitions = 0 },
			wantErr: "repetitions must be positive",
		},
		{
			name:    "store enabled without driver",
			mutate:  func(c *Config) { c.Store.Enabled = true },
			wantErr: "no driver",
		},
		{
			name:    "upload enabled without bucket",
			mutate:  func(c *Config) { c.Upload.Enabled = true },
			wantErr: "no bucket",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestEffectiveOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "SELECT 1 FROM rdb$database", cfg.EffectiveQuery(&cfg.Servers[0]))
	assert.Equal(t, 10, cfg.EffectiveRepetitions(&cfg.Servers[0]))

	assert.Equal(t, "SELECT 1", cfg.EffectiveQuery(&cfg.Servers[1]))
	assert.Equal(t, 5, cfg.EffectiveRepetitions(&cfg.Servers[1]))
}

func TestServerConnParams(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	params, err := cfg.Servers[0].ConnParams()
	require.NoError(t, err)

	assert.Equal(t, database.EngineFirebird, params.Engine)
	assert.Equal(t, "10.0.0.10", params.Host)
	assert.Equal(t, 3050, params.Port)
	assert.Equal(t, "/data/bench.fdb", params.Database)
	assert.Equal(t, "SYSDBA", params.User)
}

func TestExampleYAML(t *testing.T) {
	text, err := ExampleYAML()
	require.NoError(t, err)
	require.NotEmpty(t, text)

	cfg, err := LoadReader(strings.NewReader(text))
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Servers)
}

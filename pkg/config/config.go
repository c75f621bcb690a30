// Package config loads and validates the benchmark configuration. Values
// come from a YAML file with QUERYBENCH_-prefixed environment overrides.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/querybench/querybench/pkg/database"
	"github.com/querybench/querybench/pkg/store"
	"github.com/querybench/querybench/pkg/upload"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultResultsDir is the default directory for benchmark results.
	DefaultResultsDir = "./results"

	// DefaultQuery keeps a misconfigured benchmark harmless.
	DefaultQuery = "SELECT 1"

	// DefaultRepetitions is how often the query runs per server.
	DefaultRepetitions = 20

	// DefaultConcurrency is the worker count per server.
	DefaultConcurrency = 1

	// DefaultMaxConnectFailures is the consecutive connect failures a
	// worker tolerates before giving up.
	DefaultMaxConnectFailures = 3

	// DefaultOSType labels servers that do not declare their OS.
	DefaultOSType = "linux"

	// envPrefix namespaces environment variable overrides.
	envPrefix = "QUERYBENCH"
)

// Config is the root configuration for querybench.
type Config struct {
	Global    GlobalConfig    `yaml:"global"`
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Servers   []ServerConfig  `yaml:"servers"`
	Output    OutputConfig    `yaml:"output"`
	Store     StoreConfig     `yaml:"store"`
	Upload    UploadConfig    `yaml:"upload"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel string `yaml:"log_level"`
}

// BenchmarkConfig contains the run parameters shared by all servers.
type BenchmarkConfig struct {
	Query              string        `yaml:"query"`
	Repetitions        int           `yaml:"repetitions"`
	Concurrency        int           `yaml:"concurrency"`
	RunTimeout         time.Duration `yaml:"run_timeout"`
	ProfileTimeout     time.Duration `yaml:"profile_timeout"`
	Interval           time.Duration `yaml:"interval"`
	MaxConnectFailures int           `yaml:"max_connect_failures"`

	// ParallelServers is how many servers run their profiles at once;
	// values below two mean sequential execution.
	ParallelServers int `yaml:"parallel_servers"`
}

// ServerConfig defines one benchmark target. Query and Repetitions
// override the benchmark-wide values when set.
type ServerConfig struct {
	ID       string `yaml:"id"`
	Engine   string `yaml:"engine"`
	OSType   string `yaml:"os,omitempty"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password,omitempty"`
	Charset  string `yaml:"charset,omitempty"`

	Query       string `yaml:"query,omitempty"`
	Repetitions int    `yaml:"repetitions,omitempty"`
}

// OutputConfig controls where results land.
type OutputConfig struct {
	ResultsDir string `yaml:"results_dir"`
	CSV        bool   `yaml:"csv"`
	Console    bool   `yaml:"console"`
}

// StoreConfig wraps the result database settings.
type StoreConfig struct {
	Enabled      bool `yaml:"enabled"`
	store.Config `yaml:",inline"`
}

// UploadConfig wraps the S3 upload settings.
type UploadConfig struct {
	Enabled       bool `yaml:"enabled"`
	upload.Config `yaml:",inline"`
}

// Load reads the configuration file, applies QUERYBENCH_ environment
// overrides, fills defaults and validates.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}

	defer func() { _ = f.Close() }()

	return LoadReader(f)
}

// LoadReader parses YAML configuration from r, applying the same
// environment overrides and validation as Load.
func LoadReader(r io.Reader) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
		// Embedded store and upload configs inline their keys.
		dc.Squash = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = DefaultLogLevel
	}

	if c.Benchmark.Query == "" {
		c.Benchmark.Query = DefaultQuery
	}

	if c.Benchmark.Repetitions == 0 {
		c.Benchmark.Repetitions = DefaultRepetitions
	}

	if c.Benchmark.Concurrency == 0 {
		c.Benchmark.Concurrency = DefaultConcurrency
	}

	if c.Benchmark.MaxConnectFailures == 0 {
		c.Benchmark.MaxConnectFailures = DefaultMaxConnectFailures
	}

	if c.Output.ResultsDir == "" {
		c.Output.ResultsDir = DefaultResultsDir
		c.Output.CSV = true
		c.Output.Console = true
	}

	for i := range c.Servers {
		s := &c.Servers[i]

		if s.OSType == "" {
			s.OSType = DefaultOSType
		}

		if s.Port == 0 {
			if engine, err := database.ParseEngine(s.Engine); err == nil {
				s.Port = engine.DefaultPort()
			}
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Servers) == 0 {
		return fmt.Errorf("at least one server must be configured")
	}

	if c.Benchmark.Repetitions < 1 {
		return fmt.Errorf("benchmark repetitions must be positive")
	}

	if c.Benchmark.Concurrency < 1 {
		return fmt.Errorf("benchmark concurrency must be positive")
	}

	seenIDs := make(map[string]struct{}, len(c.Servers))

	for i, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("server %d: id is required", i)
		}

		if _, exists := seenIDs[s.ID]; exists {
			return fmt.Errorf("server %d: duplicate id %q", i, s.ID)
		}

		seenIDs[s.ID] = struct{}{}

		if _, err := database.ParseEngine(s.Engine); err != nil {
			return fmt.Errorf("server %q: %w", s.ID, err)
		}

		if s.Host == "" {
			return fmt.Errorf("server %q: host is required", s.ID)
		}

		if s.Database == "" {
			return fmt.Errorf("server %q: database is required", s.ID)
		}

		if s.User == "" {
			return fmt.Errorf("server %q: user is required", s.ID)
		}

		if s.Password == "" {
			return fmt.Errorf("server %q: password is required", s.ID)
		}

		if s.Repetitions < 0 {
			return fmt.Errorf("server %q: repetitions must not be negative", s.ID)
		}
	}

	if c.Output.ResultsDir != "" {
		dir := filepath.Dir(c.Output.ResultsDir)
		if dir != "." && dir != ".." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("results directory parent %q does not exist", dir)
			}
		}
	}

	if c.Store.Enabled && c.Store.Driver == "" {
		return fmt.Errorf("store is enabled but no driver is configured")
	}

	if c.Upload.Enabled && c.Upload.Bucket == "" {
		return fmt.Errorf("upload is enabled but no bucket is configured")
	}

	return nil
}

// EffectiveQuery returns the query a server runs, honoring its override.
func (c *Config) EffectiveQuery(s *ServerConfig) string {
	if s.Query != "" {
		return s.Query
	}

	return c.Benchmark.Query
}

// EffectiveRepetitions returns the repetition count for a server.
func (c *Config) EffectiveRepetitions(s *ServerConfig) int {
	if s.Repetitions > 0 {
		return s.Repetitions
	}

	return c.Benchmark.Repetitions
}

// ConnParams converts a server entry into connection parameters.
func (s *ServerConfig) ConnParams() (database.ConnParams, error) {
	engine, err := database.ParseEngine(s.Engine)
	if err != nil {
		return database.ConnParams{}, err
	}

	return database.ConnParams{
		Engine:   engine,
		Host:     s.Host,
		Port:     s.Port,
		Database: s.Database,
		User:     s.User,
		Password: s.Password,
		Charset:  s.Charset,
	}, nil
}

// exampleYAML is the starter configuration printed by "config example".
const exampleYAML = `global:
  log_level: info

benchmark:
  query: SELECT COUNT(*) FROM orders WHERE total > 100
  repetitions: 20
  concurrency: 1
  run_timeout: 30s
  # profile_timeout bounds the whole pass against one server; zero
  # means unbounded.
  profile_timeout: 10m
  # interval paces run starts, e.g. 500ms; zero disables pacing.
  interval: 0s
  max_connect_failures: 3
  # parallel_servers above 1 benchmarks several servers at once.
  parallel_servers: 1

servers:
  - id: fb-linux
    engine: firebird
    os: linux
    host: 10.0.0.10
    database: /data/bench.fdb
    user: SYSDBA
    password: masterkey
  - id: pg-linux
    engine: postgresql
    os: linux
    host: 10.0.0.11
    database: bench
    user: bench
    password: bench
  - id: my-windows
    engine: mysql
    os: windows
    host: 10.0.0.12
    database: bench
    user: bench
    password: bench
    # per-server overrides
    repetitions: 30

output:
  results_dir: ./results
  csv: true
  console: true

store:
  enabled: false
  driver: sqlite
  sqlite:
    path: ./results/querybench.db

upload:
  enabled: false
  bucket: my-results-bucket
  prefix: querybench/results
  region: us-east-1
`

// ExampleYAML returns a commented starter configuration. The text is
// parsed and validated before being returned so it cannot drift from the
// schema.
func ExampleYAML() (string, error) {
	if _, err := LoadReader(strings.NewReader(exampleYAML)); err != nil {
		return "", fmt.Errorf("validating example config: %w", err)
	}

	return exampleYAML, nil
}

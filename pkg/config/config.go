// Package config loads the server's configuration from environment
// variables, prefixed MEMGRAPH_, with an optional YAML file overlay read
// first so environment variables still take precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the running server needs.
//
// Example:
//
//	cfg := config.LoadFromEnvOrFile("memgraph.yaml")
//	if err := cfg.Validate(); err != nil {
//		log.Fatal(err)
//	}
type Config struct {
	// Durability controls the WAL/snapshot directory and its flush
	// behavior.
	Durability DurabilityConfig `yaml:"durability"`

	// Server settings for the session listener.
	Server ServerConfig `yaml:"server"`

	// Cluster settings for the distributed update coordinator.
	Cluster ClusterConfig `yaml:"cluster"`

	// Logging settings.
	Logging LoggingConfig `yaml:"logging"`
}

// DurabilityConfig configures the WAL and snapshot store.
type DurabilityConfig struct {
	Directory          string        `yaml:"directory"`
	Enabled            bool          `yaml:"enabled"`
	SynchronousCommit  bool          `yaml:"synchronous_commit"`
	FlushInterval      time.Duration `yaml:"wal_flush_interval"`
	RotateDeltasCount  int           `yaml:"wal_rotate_deltas_count"`
}

// ServerConfig configures the client-facing session listener.
type ServerConfig struct {
	ListenAddress       string        `yaml:"listen_address"`
	QueryTimeout        time.Duration `yaml:"query_execution_timeout"`
	LockTimeout         time.Duration `yaml:"lock_timeout"`
}

// ClusterConfig configures this worker's identity and peers within a
// cluster of coordinators.
type ClusterConfig struct {
	WorkerID  uint16   `yaml:"worker_id"`
	JoinPeers []string `yaml:"join_peers"`
}

// LoggingConfig configures pkg/logx.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DefaultConfig returns the configuration a fresh single-worker deployment
// starts with.
func DefaultConfig() *Config {
	return &Config{
		Durability: DurabilityConfig{
			Directory:         "./data",
			Enabled:           true,
			SynchronousCommit: true,
			FlushInterval:     100 * time.Millisecond,
			RotateDeltasCount: 100000,
		},
		Server: ServerConfig{
			ListenAddress: "0.0.0.0:7688",
			QueryTimeout:  30 * time.Second,
			LockTimeout:   5 * time.Second,
		},
		Cluster: ClusterConfig{
			WorkerID: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// LoadConfigOrDefault loads path, falling back to DefaultConfig if the
// file cannot be read (e.g. it doesn't exist, the common case for a
// from-scratch deployment that configures itself purely via environment
// variables).
func LoadConfigOrDefault(path string) *Config {
	cfg, err := LoadConfig(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// LoadFromEnvOrFile loads filePath (or defaults, if empty or unreadable)
// and then overrides every field an MEMGRAPH_* environment variable names.
// Environment variables always win over the file, matching the reference
// project's own env-overrides-file precedence.
func LoadFromEnvOrFile(filePath string) *Config {
	var cfg *Config
	if filePath != "" {
		cfg = LoadConfigOrDefault(filePath)
	} else {
		cfg = DefaultConfig()
	}

	cfg.Durability.Directory = getEnv("MEMGRAPH_DURABILITY_DIRECTORY", cfg.Durability.Directory)
	cfg.Durability.Enabled = getEnvBool("MEMGRAPH_DURABILITY_ENABLED", cfg.Durability.Enabled)
	cfg.Durability.SynchronousCommit = getEnvBool("MEMGRAPH_SYNCHRONOUS_COMMIT", cfg.Durability.SynchronousCommit)
	cfg.Durability.FlushInterval = getEnvMillis("MEMGRAPH_WAL_FLUSH_INTERVAL_MS", cfg.Durability.FlushInterval)
	cfg.Durability.RotateDeltasCount = getEnvInt("MEMGRAPH_WAL_ROTATE_DELTAS_COUNT", cfg.Durability.RotateDeltasCount)

	cfg.Server.ListenAddress = getEnv("MEMGRAPH_LISTEN_ADDRESS", cfg.Server.ListenAddress)
	cfg.Server.QueryTimeout = getEnvSeconds("MEMGRAPH_QUERY_EXECUTION_TIMEOUT_SEC", cfg.Server.QueryTimeout)
	cfg.Server.LockTimeout = getEnvMillis("MEMGRAPH_LOCK_TIMEOUT_MS", cfg.Server.LockTimeout)

	cfg.Cluster.WorkerID = uint16(getEnvInt("MEMGRAPH_WORKER_ID", int(cfg.Cluster.WorkerID)))
	cfg.Cluster.JoinPeers = getEnvStringSlice("MEMGRAPH_JOIN_PEERS", cfg.Cluster.JoinPeers)

	cfg.Logging.Level = getEnv("MEMGRAPH_LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Pretty = getEnvBool("MEMGRAPH_LOG_PRETTY", cfg.Logging.Pretty)

	return cfg
}

// Validate checks the configuration for obviously invalid values before
// the server attempts to use it.
func (c *Config) Validate() error {
	if c.Durability.Enabled && c.Durability.Directory == "" {
		return fmt.Errorf("config: durability enabled but no directory configured")
	}
	if c.Durability.RotateDeltasCount <= 0 {
		return fmt.Errorf("config: invalid wal_rotate_deltas_count: %d", c.Durability.RotateDeltasCount)
	}
	if c.Server.ListenAddress == "" {
		return fmt.Errorf("config: no listen address configured")
	}
	if c.Server.QueryTimeout <= 0 {
		return fmt.Errorf("config: invalid query_execution_timeout: %s", c.Server.QueryTimeout)
	}
	if c.Cluster.WorkerID == 0 {
		return fmt.Errorf("config: worker_id must be nonzero (0 is the gid.Address sentinel)")
	}
	return nil
}

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

func getEnvMillis(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvSeconds(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultVal
}

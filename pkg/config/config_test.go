package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadFromEnvOrFileOverridesDefaults(t *testing.T) {
	os.Setenv("MEMGRAPH_DURABILITY_DIRECTORY", "/var/lib/memgraph")
	os.Setenv("MEMGRAPH_WAL_FLUSH_INTERVAL_MS", "250")
	os.Setenv("MEMGRAPH_WORKER_ID", "7")
	os.Setenv("MEMGRAPH_JOIN_PEERS", "10.0.0.1:7688, 10.0.0.2:7688")
	defer func() {
		os.Unsetenv("MEMGRAPH_DURABILITY_DIRECTORY")
		os.Unsetenv("MEMGRAPH_WAL_FLUSH_INTERVAL_MS")
		os.Unsetenv("MEMGRAPH_WORKER_ID")
		os.Unsetenv("MEMGRAPH_JOIN_PEERS")
	}()

	cfg := LoadFromEnvOrFile("")
	require.Equal(t, "/var/lib/memgraph", cfg.Durability.Directory)
	require.Equal(t, 250*time.Millisecond, cfg.Durability.FlushInterval)
	require.EqualValues(t, 7, cfg.Cluster.WorkerID)
	require.Equal(t, []string{"10.0.0.1:7688", "10.0.0.2:7688"}, cfg.Cluster.JoinPeers)
}

func TestValidateRejectsZeroWorkerID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cluster.WorkerID = 0
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptyDurabilityDirectory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Durability.Directory = ""
	require.Error(t, cfg.Validate())
}

func TestLoadConfigOrDefaultFallsBackOnMissingFile(t *testing.T) {
	cfg := LoadConfigOrDefault("/nonexistent/memgraph.yaml")
	require.Equal(t, DefaultConfig(), cfg)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.Equal(t, "localhost", cfg.Host.Name)
	require.Equal(t, 8081, cfg.Host.Port)
	require.Equal(t, "default", cfg.Host.ClusterName)
	require.True(t, cfg.Host.MasterEligibility)
	require.Equal(t, "BACKWARD", cfg.Avro.CompatibilityLevel)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid default", mutate: func(c *Config) {}, wantErr: false},
		{name: "invalid port", mutate: func(c *Config) { c.Host.Port = 0 }, wantErr: true},
		{name: "missing cluster name", mutate: func(c *Config) { c.Host.ClusterName = "" }, wantErr: true},
		{name: "missing kafka url", mutate: func(c *Config) { c.Kafka.ConnectionURL = "" }, wantErr: true},
		{name: "invalid compatibility level", mutate: func(c *Config) { c.Avro.CompatibilityLevel = "BOGUS" }, wantErr: true},
		{name: "zero bootstrap timeout", mutate: func(c *Config) { c.Kafka.BootstrapTimeoutMs = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host:
  name: node-1
  port: 9091
  cluster_name: prod
  master_eligibility: true
kafkastore:
  connection_url: "zk1:2181,zk2:2181"
  zk_session_timeout_ms: 15000
  write_timeout_ms: 2000
  bootstrap_timeout_ms: 30000
avro:
  compatibility_level: FULL
`), 0o644))

	t.Setenv("SCHEMA_REGISTRY_PORT", "9999")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "node-1", cfg.Host.Name)
	require.Equal(t, 9999, cfg.Host.Port) // env override wins over file
	require.Equal(t, "prod", cfg.Host.ClusterName)
	require.Equal(t, "FULL", cfg.Avro.CompatibilityLevel)
	require.Equal(t, 15*time.Second, cfg.Kafka.ZKSessionTimeout())
	require.Equal(t, 2*time.Second, cfg.Kafka.WriteTimeout())
	require.Equal(t, 30*time.Second, cfg.Kafka.BootstrapTimeout())
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("host:\n  port: 999999\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestAddress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host.Name = "node-a"
	cfg.Host.Port = 8081
	require.Equal(t, "node-a:8081", cfg.Address())
}

func TestWatcher_ReloadsCompatibilityLevelOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	write := func(level string) {
		require.NoError(t, os.WriteFile(path, []byte(`
host:
  cluster_name: test
kafkastore:
  connection_url: "zk:2181"
avro:
  compatibility_level: `+level+"\n"), 0o644))
	}
	write("BACKWARD")

	w, err := NewWatcher(path, "BACKWARD", nil)
	require.NoError(t, err)
	defer w.Close()
	require.Equal(t, "BACKWARD", w.Level())

	write("FULL")

	require.Eventually(t, func() bool {
		return w.Level() == "FULL"
	}, 2*time.Second, 10*time.Millisecond)
}

// Package config provides configuration management for the schema registry
// core: the node identity, Kafka log, ZooKeeper coordinator, and
// compatibility keys named in spec §6, loaded from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the schema registry core's full configuration, covering every
// key spec §6 names.
type Config struct {
	Host  HostConfig  `yaml:"host"`
	Kafka KafkaConfig `yaml:"kafkastore"`
	Avro  AvroConfig  `yaml:"avro"`

	// Metrics controls the client_golang sampling window (spec §6's
	// metrics.num.samples / metrics.sample.window.ms).
	Metrics MetricsConfig `yaml:"metrics"`

	// ZK is the coordinator's ZooKeeper connection string, shared with the
	// Kafka log's session-timeout setting under kafkastore.zk.*.
	ZK ZKConfig `yaml:"zookeeper"`

	Logging LoggingConfig `yaml:"logging"`
}

// HostConfig is host.name / port / cluster.name / master.eligibility from
// spec §6: this node's advertised address, the cluster it joins, and
// whether it is eligible to hold the master lease.
type HostConfig struct {
	Name              string `yaml:"name"`
	Port              int    `yaml:"port"`
	ClusterName       string `yaml:"cluster_name"`
	MasterEligibility bool   `yaml:"master_eligibility"`
}

// KafkaConfig is the kafkastore.* family: the log topic's connection
// string and the three timeouts spec §6 requires (ZK session, write,
// bootstrap).
type KafkaConfig struct {
	ConnectionURL        string `yaml:"connection_url"`
	Topic                string `yaml:"topic"`
	ZKSessionTimeoutMs   int    `yaml:"zk_session_timeout_ms"`
	WriteTimeoutMs       int    `yaml:"write_timeout_ms"`
	BootstrapTimeoutMs   int    `yaml:"bootstrap_timeout_ms"`
}

func (k KafkaConfig) ZKSessionTimeout() time.Duration {
	return time.Duration(k.ZKSessionTimeoutMs) * time.Millisecond
}

func (k KafkaConfig) WriteTimeout() time.Duration {
	return time.Duration(k.WriteTimeoutMs) * time.Millisecond
}

func (k KafkaConfig) BootstrapTimeout() time.Duration {
	return time.Duration(k.BootstrapTimeoutMs) * time.Millisecond
}

// AvroConfig holds avro.compatibility.level, the cluster-wide default
// applied when a subject has no config of its own.
type AvroConfig struct {
	CompatibilityLevel string `yaml:"compatibility_level"`
}

// MetricsConfig is metrics.num.samples / metrics.sample.window.ms.
type MetricsConfig struct {
	NumSamples      int `yaml:"num_samples"`
	SampleWindowMs  int `yaml:"sample_window_ms"`
}

func (m MetricsConfig) SampleWindow() time.Duration {
	return time.Duration(m.SampleWindowMs) * time.Millisecond
}

// ZKConfig is the coordinator's connection string and namespace root.
type ZKConfig struct {
	Servers []string `yaml:"servers"`
	Chroot  string   `yaml:"chroot"`
}

// LoggingConfig controls the slog JSON handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

var validCompatibilityLevels = map[string]bool{
	"NONE":     true,
	"BACKWARD": true,
	"FORWARD":  true,
	"FULL":     true,
}

// DefaultConfig returns a configuration suitable for a single dev node.
func DefaultConfig() *Config {
	return &Config{
		Host: HostConfig{
			Name:              "localhost",
			Port:              8081,
			ClusterName:       "default",
			MasterEligibility: true,
		},
		Kafka: KafkaConfig{
			ConnectionURL:      "localhost:2181",
			Topic:              "_schemas",
			ZKSessionTimeoutMs: 30000,
			WriteTimeoutMs:     5000,
			BootstrapTimeoutMs: 60000,
		},
		Avro: AvroConfig{
			CompatibilityLevel: "BACKWARD",
		},
		Metrics: MetricsConfig{
			NumSamples:     10,
			SampleWindowMs: 60000,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables override file configuration. An empty path loads
// defaults and applies only environment overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		// #nosec G304 -- path is from command-line argument, user-controlled input is expected
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("config: parse file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SCHEMA_REGISTRY_HOST_NAME"); v != "" {
		c.Host.Name = v
	}
	if v := os.Getenv("SCHEMA_REGISTRY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Host.Port = p
		}
	}
	if v := os.Getenv("SCHEMA_REGISTRY_CLUSTER_NAME"); v != "" {
		c.Host.ClusterName = v
	}
	if v := os.Getenv("SCHEMA_REGISTRY_MASTER_ELIGIBILITY"); v != "" {
		c.Host.MasterEligibility = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("SCHEMA_REGISTRY_KAFKASTORE_CONNECTION_URL"); v != "" {
		c.Kafka.ConnectionURL = v
	}
	if v := os.Getenv("SCHEMA_REGISTRY_KAFKASTORE_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("SCHEMA_REGISTRY_KAFKASTORE_ZK_SESSION_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Kafka.ZKSessionTimeoutMs = ms
		}
	}
	if v := os.Getenv("SCHEMA_REGISTRY_KAFKASTORE_WRITE_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Kafka.WriteTimeoutMs = ms
		}
	}
	if v := os.Getenv("SCHEMA_REGISTRY_KAFKASTORE_BOOTSTRAP_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Kafka.BootstrapTimeoutMs = ms
		}
	}
	if v := os.Getenv("SCHEMA_REGISTRY_AVRO_COMPATIBILITY_LEVEL"); v != "" {
		c.Avro.CompatibilityLevel = strings.ToUpper(v)
	}
	if v := os.Getenv("SCHEMA_REGISTRY_METRICS_NUM_SAMPLES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Metrics.NumSamples = n
		}
	}
	if v := os.Getenv("SCHEMA_REGISTRY_METRICS_SAMPLE_WINDOW_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			c.Metrics.SampleWindowMs = ms
		}
	}
	if v := os.Getenv("SCHEMA_REGISTRY_ZK_SERVERS"); v != "" {
		c.ZK.Servers = strings.Split(v, ",")
	}
	if v := os.Getenv("SCHEMA_REGISTRY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// Validate checks that required fields are set and within range.
func (c *Config) Validate() error {
	if c.Host.Port < 1 || c.Host.Port > 65535 {
		return fmt.Errorf("invalid host port: %d", c.Host.Port)
	}
	if c.Host.ClusterName == "" {
		return fmt.Errorf("cluster.name is required")
	}
	if c.Kafka.ConnectionURL == "" {
		return fmt.Errorf("kafkastore.connection.url is required")
	}
	if c.Kafka.ZKSessionTimeoutMs <= 0 {
		return fmt.Errorf("invalid kafkastore.zk.session.timeout.ms: %d", c.Kafka.ZKSessionTimeoutMs)
	}
	if c.Kafka.WriteTimeoutMs <= 0 {
		return fmt.Errorf("invalid kafkastore.write.timeout.ms: %d", c.Kafka.WriteTimeoutMs)
	}
	if c.Kafka.BootstrapTimeoutMs <= 0 {
		return fmt.Errorf("invalid kafkastore.bootstrap.timeout.ms: %d", c.Kafka.BootstrapTimeoutMs)
	}
	if !validCompatibilityLevels[strings.ToUpper(c.Avro.CompatibilityLevel)] {
		return fmt.Errorf("invalid avro.compatibility.level: %s", c.Avro.CompatibilityLevel)
	}
	if c.Metrics.NumSamples < 0 {
		return fmt.Errorf("invalid metrics.num.samples: %d", c.Metrics.NumSamples)
	}
	return nil
}

// Address returns this node's advertised host:port.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host.Name, c.Host.Port)
}

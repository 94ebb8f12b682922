// Package config loads and validates the observer agent configuration.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultConfigPath = "/etc/fabric-observer/config.yaml"

// Config represents the runtime configuration for the observer agent.
type Config struct {
	NodeName           string         `yaml:"node_name"`
	EtcdEndpoints      []string       `yaml:"etcd_endpoints"`
	EtcdNamespace      string         `yaml:"etcd_namespace"`
	EtcdTLS            *EtcdTLSConfig `yaml:"etcd_tls"`
	EtcdDialTimeoutSec int            `yaml:"etcd_dial_timeout_sec"`
	HealthPrefix       string         `yaml:"health_prefix"`
	DefaultTTLSec      int            `yaml:"default_ttl_sec"`
	ObserveIntervalSec int            `yaml:"observe_interval_sec"`
	EmitLogEvents      bool           `yaml:"emit_log_events"`
	Metrics            MetricsConfig  `yaml:"metrics"`
}

// EtcdTLSConfig configures optional TLS settings for connecting to etcd.
type EtcdTLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CAFile   string `yaml:"ca_file"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	Insecure bool   `yaml:"insecure_skip_verify"`
}

// MetricsConfig defines observability exposure options.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// ValidationError aggregates multiple configuration validation failures.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	var other *ValidationError
	return errors.As(target, &other)
}

// Load reads, parses, and validates a configuration from disk.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return decode(f)
}

func decode(r io.Reader) (*Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks for semantic correctness in the configuration.
func (c *Config) Validate() error {
	problems := make([]string, 0)

	if strings.TrimSpace(c.NodeName) == "" {
		problems = append(problems, "node_name is required")
	}
	if len(c.EtcdEndpoints) == 0 {
		problems = append(problems, "etcd_endpoints must contain at least one endpoint")
	}
	if c.EtcdDialTimeoutSec <= 0 {
		problems = append(problems, "etcd_dial_timeout_sec must be greater than zero")
	}
	if c.DefaultTTLSec <= 0 {
		problems = append(problems, "default_ttl_sec must be greater than zero")
	}
	if c.ObserveIntervalSec <= 0 {
		problems = append(problems, "observe_interval_sec must be greater than zero")
	}
	if c.EtcdTLS != nil && c.EtcdTLS.Enabled {
		if strings.TrimSpace(c.EtcdTLS.CAFile) == "" {
			problems = append(problems, "etcd_tls.ca_file is required when TLS is enabled")
		}
		if strings.TrimSpace(c.EtcdTLS.CertFile) == "" {
			problems = append(problems, "etcd_tls.cert_file is required when TLS is enabled")
		}
		if strings.TrimSpace(c.EtcdTLS.KeyFile) == "" {
			problems = append(problems, "etcd_tls.key_file is required when TLS is enabled")
		}
	}
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Listen) == "" {
		problems = append(problems, "metrics.listen must be set when metrics.enabled is true")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.EtcdDialTimeoutSec == 0 {
		c.EtcdDialTimeoutSec = 5
	}
	if strings.TrimSpace(c.HealthPrefix) == "" {
		c.HealthPrefix = "cluster_health"
	}
	if c.DefaultTTLSec == 0 {
		c.DefaultTTLSec = 300
	}
	if c.ObserveIntervalSec == 0 {
		c.ObserveIntervalSec = 60
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9090"
	}
}

// TLSConfig materialises the etcd TLS settings, or returns nil when TLS is
// disabled.
func (c *Config) TLSConfig() (*tls.Config, error) {
	if c.EtcdTLS == nil || !c.EtcdTLS.Enabled {
		return nil, nil
	}

	cert, err := tls.LoadX509KeyPair(c.EtcdTLS.CertFile, c.EtcdTLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load etcd client certificate: %w", err)
	}
	caPEM, err := os.ReadFile(c.EtcdTLS.CAFile)
	if err != nil {
		return nil, fmt.Errorf("read etcd ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, errors.New("etcd ca file contains no usable certificates")
	}

	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		RootCAs:            pool,
		InsecureSkipVerify: c.EtcdTLS.Insecure, // #nosec G402 -- operator opt-in for lab clusters
		MinVersion:         tls.VersionTLS12,
	}, nil
}

// EtcdDialTimeout returns the configured etcd dial timeout as a duration.
func (c *Config) EtcdDialTimeout() time.Duration {
	return time.Duration(c.EtcdDialTimeoutSec) * time.Second
}

// DefaultTTL returns the fallback health record time-to-live.
func (c *Config) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSec) * time.Second
}

// ObserveInterval returns how long the runner waits between sweeps.
func (c *Config) ObserveInterval() time.Duration {
	return time.Duration(c.ObserveIntervalSec) * time.Second
}

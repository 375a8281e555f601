// Package config centralizes the proxy's configuration: byte budgets for the
// cache, admission-control limits, and the ambient observability stack. A
// single Config instance is constructed once, from a YAML file, and shared
// by every component as a singleton.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

// Config aggregates every component's settings for centralized management.
// Loaded once at startup and shared by every component as a singleton.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Admission AdmissionConfig `yaml:"admission" json:"admission"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
}

// ServerConfig controls the listener itself.
// Its Port is always overridden by the proxy's positional command-line
// argument when one is given.
type ServerConfig struct {
	Port int `yaml:"port" json:"port" default:"8080"`
}

// CacheConfig controls the shared response cache's byte budgets.
// Mirrors the constants spec.md §3 recommends, overridable per deployment.
type CacheConfig struct {
	CapacityBytes  int64 `yaml:"capacityBytes" json:"capacityBytes" default:"1049000"`
	ObjectMaxBytes int64 `yaml:"objectMaxBytes" json:"objectMaxBytes" default:"102400"`
}

// AdmissionConfig controls the per-remote-IP connection-rate limiter that
// guards the accept loop. This bounds how fast one source address may open
// new connections; it never inspects or rejects based on client identity.
type AdmissionConfig struct {
	Enabled          bool `yaml:"enabled" json:"enabled" default:"true"`
	BurstConnections int  `yaml:"burstConnections" json:"burstConnections" default:"20"`
	RefillPerSecond  int  `yaml:"refillPerSecond" json:"refillPerSecond" default:"10"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" default:"info"`
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled" default:"false"`
	ServiceName    string  `yaml:"serviceName" json:"serviceName" default:"cacheproxy"`
	ServiceVersion string  `yaml:"serviceVersion" json:"serviceVersion" default:"1.0.0"`
	Environment    string  `yaml:"environment" json:"environment" default:"development"`
	JaegerEndpoint string  `yaml:"jaegerEndpoint" json:"jaegerEndpoint"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRatio  float64 `yaml:"samplingRatio" json:"samplingRatio" default:"0.1"`
}

// MetricsAddr is where the ambient /metrics exposition listener binds. It is
// not part of the YAML-configurable surface (an internal diagnostics port,
// not a proxy behavior), but lives here alongside everything else process
// start needs.
const MetricsAddr = ":9090"

// ShutdownGrace bounds how long graceful shutdown waits for in-flight
// connections before main gives up and returns.
const ShutdownGrace = 30 * time.Second

// DefaultConfig returns configuration with the budgets and ambient defaults
// this system was designed against.
// Time Complexity: O(1) - fixed-size struct literal.
// Space Complexity: O(1) - fixed-size struct.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Cache: CacheConfig{
			CapacityBytes:  1_049_000,
			ObjectMaxBytes: 102_400,
		},
		Admission: AdmissionConfig{
			Enabled:          true,
			BurstConnections: 20,
			RefillPerSecond:  10,
		},
		Logging: LoggingConfig{Level: "info"},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "cacheproxy",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			SamplingRatio:  0.1,
		},
	}
}

// GetInstance returns the singleton config instance, constructing it with
// defaults via DefaultConfig on first access if LoadConfig was never called.
// Time Complexity: O(1) - returns cached instance after first call.
// Space Complexity: O(1) - stores a single configuration instance.
func GetInstance() *Config {
	once.Do(func() {
		instance = DefaultConfig()
	})
	return instance
}

// LoadConfig loads configuration from a YAML file at path and installs it as
// the singleton instance, unless GetInstance or LoadConfig has already
// initialized the singleton, in which case the loaded configuration is
// discarded and the existing instance stays. A missing file is not an error — it is the common
// case for this proxy, which runs perfectly well on defaults — and simply
// leaves the defaults in place.
// Time Complexity: O(n) where n is the size of the config file.
// Space Complexity: O(n) - the file is read fully into memory before parsing.
func LoadConfig(path string) error {
	cfg, err := loadFromFile(path)
	if err != nil {
		return err
	}

	once.Do(func() {
		instance = cfg
	})
	return nil
}

// loadFromFile reads and merges YAML configuration over the defaults. A
// missing file yields the defaults unchanged; a present-but-malformed file
// is reported as an error so startup can fail loudly instead of silently
// running with half-applied settings.
// Time Complexity: O(n) where n is the size of the config file.
// Space Complexity: O(n) - holds the raw file bytes plus the decoded struct.
func loadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return cfg, nil
}

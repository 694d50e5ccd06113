// Package config loads daemon configuration from an optional toml file
// with environment-variable overrides. Environment variables take
// priority over the file; defaults apply when neither is set.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Default config path. It does not need to exist, default values for all
// parameters will be used instead.
const defaultConfigPath = "/etc/uringblk/config.toml"

// Config holds every tunable of the daemon. Loaders return a value, so
// multiple device registries with different configurations can coexist
// in one process.
type Config struct {
	ConfigPath string

	NrHwQueues       int    `toml:"nr_hw_queues" env:"URINGBLK_NR_HW_QUEUES" env-default:"4" env-description:"Number of independent I/O queues per device."`
	QueueDepth       int    `toml:"queue_depth" env:"URINGBLK_QUEUE_DEPTH" env-default:"1024" env-description:"Submission depth of each queue."`
	LogicalBlockSize int    `toml:"logical_block_size" env:"URINGBLK_LBS" env-default:"512" env-description:"Logical block size in bytes (512 or 4096)."`
	CapacityMB       int64  `toml:"capacity_mb" env:"URINGBLK_CAPACITY_MB" env-default:"1024" env-description:"Device capacity in MB for memory-backed devices."`
	Backend          string `toml:"backend" env:"URINGBLK_BACKEND" env-default:"memory" env-description:"Backend kind: memory or passthrough."`
	Devices          string `toml:"devices" env:"URINGBLK_DEVICES" env-default:"" env-description:"Comma-separated passthrough targets, one device per entry."`
	MaxDevices       int    `toml:"max_devices" env:"URINGBLK_MAX_DEVICES" env-default:"16" env-description:"Upper bound on concurrently managed devices."`

	WriteCache    bool `toml:"write_cache" env:"URINGBLK_WRITE_CACHE" env-default:"true" env-description:"Advertise a volatile write cache."`
	EnableDiscard bool `toml:"enable_discard" env:"URINGBLK_DISCARD" env-default:"true" env-description:"Enable discard and write-zeroes."`
	EnablePoll    bool `toml:"enable_poll" env:"URINGBLK_POLL" env-default:"true" env-description:"Advertise completion polling."`

	Log struct {
		Level  string `toml:"level" env:"URINGBLK_LOG_LEVEL" env-default:"info" env-description:"Log level: debug, info, warn, error."`
		Pretty bool   `toml:"pretty" env:"URINGBLK_LOG_PRETTY" env-default:"false" env-description:"Human-readable console logging instead of JSON."`
	} `toml:"log"`

	Metrics struct {
		Enabled bool `toml:"enabled" env:"URINGBLK_METRICS" env-default:"false" env-description:"Expose Prometheus metrics over HTTP."`
		Port    int  `toml:"port" env:"URINGBLK_METRICS_PORT" env-default:"9143" env-description:"Metrics listen port."`
	} `toml:"metrics"`

	Profiler     bool `toml:"profiler" env:"URINGBLK_PROFILER" env-default:"false" env-description:"Enable golang web profiler."`
	ProfilerPort int  `toml:"profiler_port" env:"URINGBLK_PROFILER_PORT" env-default:"6060" env-description:"Profiler listen port."`
}

// Load reads commandline flags and handles the configuration. The
// configuration file has the lower priority and the environment
// variables have the highest priority. Either alone is fine.
func Load() (Config, error) {
	var cfg Config
	flagSetup(&cfg)
	if err := parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads configuration from the given path (environment still
// overrides), skipping flag parsing. Intended for embedding and tests.
func LoadFile(path string) (Config, error) {
	cfg := Config{ConfigPath: path}
	if err := parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func parse(cfg *Config) error {
	if err := cleanenv.ReadConfig(cfg.ConfigPath, cfg); err != nil {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return err
		}
	}
	return cfg.validate()
}

func (c *Config) validate() error {
	if c.NrHwQueues <= 0 {
		return fmt.Errorf("nr_hw_queues must be positive, got %d", c.NrHwQueues)
	}
	if c.QueueDepth <= 0 {
		return fmt.Errorf("queue_depth must be positive, got %d", c.QueueDepth)
	}
	if c.LogicalBlockSize != 512 && c.LogicalBlockSize != 4096 {
		return fmt.Errorf("logical_block_size must be 512 or 4096, got %d", c.LogicalBlockSize)
	}
	if c.CapacityMB <= 0 {
		return fmt.Errorf("capacity_mb must be positive, got %d", c.CapacityMB)
	}
	if c.MaxDevices <= 0 {
		return fmt.Errorf("max_devices must be positive, got %d", c.MaxDevices)
	}

	switch strings.ToLower(c.Backend) {
	case "memory", "passthrough":
		c.Backend = strings.ToLower(c.Backend)
	default:
		return fmt.Errorf("backend must be memory or passthrough, got %q", c.Backend)
	}
	if c.Backend == "passthrough" && strings.TrimSpace(c.Devices) == "" {
		return fmt.Errorf("passthrough backend requires at least one device target")
	}
	return nil
}

// CapacityBytes returns the configured memory-device capacity in bytes.
func (c *Config) CapacityBytes() uint64 {
	return uint64(c.CapacityMB) * 1024 * 1024
}

// Handle program flags.
func flagSetup(cfg *Config) {
	f := flag.NewFlagSet("uringblkd", flag.ExitOnError)
	f.StringVar(&cfg.ConfigPath, "c", defaultConfigPath, "Path to configuration file")
	f.Usage = cleanenv.FUsage(f.Output(), cfg, nil, f.Usage)
	f.Parse(os.Args[1:])
}

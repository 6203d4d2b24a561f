package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var ErrEmptyDiskPath = errors.New("disk path is empty")

// AdjustConfig fills zero intervals with defaults.
func (cfg *Cache) AdjustConfig() {
	if cfg.Memory.Enabled() {
		if cfg.Memory.AutoTrimInterval <= 0 {
			cfg.Memory.AutoTrimInterval = defaultMemoryAutoTrimInterval
		}
		if cfg.Memory.AgeLimit <= 0 {
			cfg.Memory.AgeLimit = NoAgeLimit
		}
	}

	if cfg.Disk.Enabled() {
		if cfg.Disk.AutoTrimInterval <= 0 {
			cfg.Disk.AutoTrimInterval = defaultDiskTrimInterval
		}
		if cfg.Disk.AgeLimit <= 0 {
			cfg.Disk.AgeLimit = NoAgeLimit
		}
		if cfg.Disk.LockTimeout <= 0 {
			cfg.Disk.LockTimeout = defaultStorageLockWaiter
		}
	}

	if cfg.Telemetry.Enabled() && cfg.Telemetry.Interval <= 0 {
		cfg.Telemetry.Interval = defaultTelemetryInterval
	}
}

// Validate reports configuration which cannot work at all.
func (cfg *Cache) Validate() error {
	if cfg.Disk.Enabled() && cfg.Disk.Path == "" {
		return ErrEmptyDiskPath
	}
	return nil
}

// LoadConfig reads a YAML file. Sections present in the file start from their
// defaults, so omitted fields keep default values.
func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var raw struct {
		Name      string        `yaml:"name"`
		Memory    yaml.Node     `yaml:"memory"`
		Disk      yaml.Node     `yaml:"disk"`
		Telemetry *TelemetryCfg `yaml:"telemetry"`
	}
	if err = yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}

	cfg := &Cache{Name: raw.Name, Telemetry: raw.Telemetry}
	if cfg.Name == "" {
		cfg.Name = Default().Name
	}
	if !raw.Memory.IsZero() {
		cfg.Memory = DefaultMemory()
		if err = raw.Memory.Decode(cfg.Memory); err != nil {
			return nil, fmt.Errorf("decode memory section from %s: %w", path, err)
		}
	}
	if !raw.Disk.IsZero() {
		cfg.Disk = DefaultDisk("")
		if err = raw.Disk.Decode(cfg.Disk); err != nil {
			return nil, fmt.Errorf("decode disk section from %s: %w", path, err)
		}
	}

	cfg.AdjustConfig()
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config %s: %w", path, err)
	}

	return cfg, nil
}

package config

import "time"

const defaultTelemetryInterval = 5 * time.Second

type TelemetryCfg struct {
	// Interval between two stat log lines. Zero is replaced by 5s during AdjustConfig.
	Interval time.Duration `yaml:"interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil
}

package config

import "time"

const defaultMemoryAutoTrimInterval = 5 * time.Second

// MemoryCfg configures the memory tier. Zero limits mean "keep nothing", so
// build it with DefaultMemory and override what differs.
type MemoryCfg struct {
	// CountLimit is the maximum number of items kept in memory.
	CountLimit Limit `yaml:"count_limit"`

	// CostLimit is the maximum sum of item costs kept in memory.
	// Cost is whatever unit the caller assigns on write, usually bytes.
	CostLimit Limit `yaml:"cost_limit"`

	// AgeLimit is the maximum time since the last access after which an item is dropped.
	// Example: "10m".
	AgeLimit time.Duration `yaml:"age_limit"`

	// AutoTrimInterval defines how often the background trimmer enforces all limits.
	// Zero is replaced by 5s during AdjustConfig.
	AutoTrimInterval time.Duration `yaml:"auto_trim_interval"`

	// RemoveAllOnMemoryWarning clears the tier when the host reports memory pressure.
	RemoveAllOnMemoryWarning bool `yaml:"remove_all_on_memory_warning"`

	// RemoveAllOnBackground clears the tier when the host enters background.
	RemoveAllOnBackground bool `yaml:"remove_all_on_background"`

	// ReleaseAsync hands removed values to a background pool instead of releasing
	// them on the goroutine which removed them.
	ReleaseAsync bool `yaml:"release_async"`
}

func DefaultMemory() *MemoryCfg {
	return &MemoryCfg{
		CountLimit:               Unlimited,
		CostLimit:                Unlimited,
		AgeLimit:                 NoAgeLimit,
		AutoTrimInterval:         defaultMemoryAutoTrimInterval,
		RemoveAllOnMemoryWarning: true,
		RemoveAllOnBackground:    true,
		ReleaseAsync:             true,
	}
}

func (cfg *MemoryCfg) Enabled() bool {
	return cfg != nil
}

package config

import "time"

const (
	// DefaultInlineThreshold is the largest payload kept inside the structured store.
	// Bigger payloads go to loose files.
	DefaultInlineThreshold   = 20 * 1024
	defaultDiskTrimInterval  = 60 * time.Second
	defaultStorageLockWaiter = time.Second
)

// DiskCfg configures the disk tier. Zero limits mean "keep nothing", so build
// it with DefaultDisk and override what differs.
type DiskCfg struct {
	// Path is the directory owned by the disk tier. Created if missing.
	Path string `yaml:"path"`

	// InlineThreshold: payloads of at most this many bytes are stored inline,
	// larger ones in loose files. 0 sends everything to files,
	// "unlimited" keeps everything inline.
	InlineThreshold Limit `yaml:"inline_threshold"`

	// CountLimit is the maximum number of records kept on disk.
	CountLimit Limit `yaml:"count_limit"`

	// CostLimit is the maximum total payload size in bytes.
	CostLimit Limit `yaml:"cost_limit"`

	// AgeLimit is the maximum time since the last access after which a record is dropped.
	AgeLimit time.Duration `yaml:"age_limit"`

	// FreeDiskSpaceLimit: when the volume has less free space than this,
	// least recently used records are removed until it has enough again.
	// Zero disables the check.
	FreeDiskSpaceLimit uint64 `yaml:"free_disk_space_limit"`

	// AutoTrimInterval defines how often the background trimmer enforces all limits.
	// Zero is replaced by 60s during AdjustConfig.
	AutoTrimInterval time.Duration `yaml:"auto_trim_interval"`

	// ErrorLogsEnabled turns storage I/O error logs on.
	ErrorLogsEnabled bool `yaml:"error_logs_enabled"`

	// LockTimeout bounds how long opening the store waits for the file lock
	// held by another process. Zero is replaced by 1s during AdjustConfig.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// PurgeRate bounds how many files per second are deleted in background
	// after RemoveAll. Zero means as fast as possible.
	PurgeRate int `yaml:"purge_rate"`

	// Compression configures zstd compression of stored payloads.
	// If nil, payloads are stored as is.
	Compression *CompressionCfg `yaml:"compression"`
}

func DefaultDisk(path string) *DiskCfg {
	return &DiskCfg{
		Path:             path,
		InlineThreshold:  DefaultInlineThreshold,
		CountLimit:       Unlimited,
		CostLimit:        Unlimited,
		AgeLimit:         NoAgeLimit,
		AutoTrimInterval: defaultDiskTrimInterval,
		LockTimeout:      defaultStorageLockWaiter,
	}
}

func (cfg *DiskCfg) Enabled() bool {
	return cfg != nil
}

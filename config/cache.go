package config

// Cache groups configuration of both cache tiers.
// Each tier can be configured independently or disabled by setting it to nil.
type Cache struct {
	// Name is used as a logger attribute and to tell instances apart in telemetry.
	Name string `yaml:"name"`

	// Memory configures the in-process LRU tier.
	// If nil, the memory tier is disabled and every read goes to disk.
	Memory *MemoryCfg `yaml:"memory"`

	// Disk configures the persistent tier.
	// If nil, the disk tier is disabled and the cache is memory-only.
	Disk *DiskCfg `yaml:"disk"`

	// Telemetry configures periodic stat logs.
	// If nil, no stat logs are written.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}

// Default returns a config with both tiers enabled and no limits.
// Disk.Path is left empty and must be set by the caller.
func Default() *Cache {
	return &Cache{
		Name:   "tiercache",
		Memory: DefaultMemory(),
		Disk:   DefaultDisk(""),
	}
}

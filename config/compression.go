package config

// CompressionCfg configures zstd compression of stored payloads.
//   - Supported levels:
//     1 = fastest
//     2 = default
//     3 = better compression
//     4 = best compression
//
// Levels outside the range are clamped.
type CompressionCfg struct {
	Level int `yaml:"level"`

	// MinSize skips compression for payloads smaller than this many bytes.
	MinSize int `yaml:"min_size"`
}

func (cfg *CompressionCfg) Enabled() bool {
	return cfg != nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoadConfig_KeepsDefaultsForOmittedFields verifies that a partial section starts from defaults.
func TestLoadConfig_KeepsDefaultsForOmittedFields(t *testing.T) {
	path := writeConfig(t, `
name: images
memory:
  count_limit: 100
disk:
  path: /var/cache/images
  cost_limit: 1048576
  free_disk_space_limit: 4096
  purge_rate: 500
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "images", cfg.Name)
	require.Equal(t, Limit(100), cfg.Memory.CountLimit)
	require.True(t, cfg.Memory.CostLimit.IsUnlimited())
	require.Equal(t, NoAgeLimit, cfg.Memory.AgeLimit)
	require.Equal(t, 5*time.Second, cfg.Memory.AutoTrimInterval)
	require.True(t, cfg.Memory.RemoveAllOnMemoryWarning)
	require.True(t, cfg.Memory.ReleaseAsync)

	require.Equal(t, "/var/cache/images", cfg.Disk.Path)
	require.Equal(t, Limit(DefaultInlineThreshold), cfg.Disk.InlineThreshold)
	require.Equal(t, Limit(1048576), cfg.Disk.CostLimit)
	require.True(t, cfg.Disk.CountLimit.IsUnlimited())
	require.Equal(t, uint64(4096), cfg.Disk.FreeDiskSpaceLimit)
	require.Equal(t, 60*time.Second, cfg.Disk.AutoTrimInterval)
	require.Equal(t, 500, cfg.Disk.PurgeRate)
	require.False(t, cfg.Disk.Compression.Enabled())
	require.False(t, cfg.Telemetry.Enabled())
}

// TestLoadConfig_DisabledTiers verifies that omitted sections disable their tier.
func TestLoadConfig_DisabledTiers(t *testing.T) {
	path := writeConfig(t, `
memory:
  age_limit: 30s
telemetry:
  interval: 0s
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.True(t, cfg.Memory.Enabled())
	require.Equal(t, 30*time.Second, cfg.Memory.AgeLimit)
	require.False(t, cfg.Disk.Enabled())
	require.True(t, cfg.Telemetry.Enabled())
	require.Equal(t, 5*time.Second, cfg.Telemetry.Interval)
}

// TestLoadConfig_UnlimitedLiteral verifies the "unlimited" keyword.
func TestLoadConfig_UnlimitedLiteral(t *testing.T) {
	path := writeConfig(t, `
disk:
  path: /tmp/x
  inline_threshold: unlimited
  count_limit: 10
  compression:
    level: 3
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.True(t, cfg.Disk.InlineThreshold.IsUnlimited())
	require.Equal(t, Limit(10), cfg.Disk.CountLimit)
	require.True(t, cfg.Disk.Compression.Enabled())
	require.Equal(t, 3, cfg.Disk.Compression.Level)
}

// TestLoadConfig_DiskWithoutPath returns a validation error.
func TestLoadConfig_DiskWithoutPath(t *testing.T) {
	path := writeConfig(t, `
disk:
  count_limit: 10
`)

	_, err := LoadConfig(path)
	require.ErrorIs(t, err, ErrEmptyDiskPath)
}

// TestLoadConfig_MissingFile returns an error.
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// TestLimit_InvalidValue rejects negative and non-numeric limits.
func TestLimit_InvalidValue(t *testing.T) {
	var holder struct {
		L Limit `yaml:"l"`
	}
	require.Error(t, yaml.Unmarshal([]byte("l: -1"), &holder))
	require.Error(t, yaml.Unmarshal([]byte("l: lots"), &holder))
}

// TestLimit_MarshalRoundTrip keeps the sentinel readable in YAML output.
func TestLimit_MarshalRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(map[string]Limit{"a": Unlimited, "b": 7})
	require.NoError(t, err)
	require.Contains(t, string(out), "a: unlimited")
	require.Contains(t, string(out), "b: 7")
}

// TestAdjustConfig_FillsZeroDurations verifies the defaults applied to hand-built configs.
func TestAdjustConfig_FillsZeroDurations(t *testing.T) {
	cfg := &Cache{
		Memory:    &MemoryCfg{},
		Disk:      &DiskCfg{Path: "x"},
		Telemetry: &TelemetryCfg{},
	}
	cfg.AdjustConfig()

	require.Equal(t, 5*time.Second, cfg.Memory.AutoTrimInterval)
	require.Equal(t, NoAgeLimit, cfg.Memory.AgeLimit)
	require.Equal(t, 60*time.Second, cfg.Disk.AutoTrimInterval)
	require.Equal(t, time.Second, cfg.Disk.LockTimeout)
	require.Equal(t, 5*time.Second, cfg.Telemetry.Interval)
	require.NoError(t, cfg.Validate())
}

// TestDefaults_AreUnbounded verifies that the constructors start every tier without limits.
func TestDefaults_AreUnbounded(t *testing.T) {
	mem := DefaultMemory()
	require.True(t, mem.CountLimit.IsUnlimited())
	require.True(t, mem.CostLimit.IsUnlimited())
	require.Equal(t, NoAgeLimit, mem.AgeLimit)

	disk := DefaultDisk(t.TempDir())
	require.True(t, disk.CountLimit.IsUnlimited())
	require.True(t, disk.CostLimit.IsUnlimited())
	require.Equal(t, NoAgeLimit, disk.AgeLimit)
	require.Zero(t, disk.FreeDiskSpaceLimit)
}

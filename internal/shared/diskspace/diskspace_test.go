//go:build linux || darwin

package diskspace

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFree_ReportsSpace verifies that the probe returns a positive value for a real directory.
func TestFree_ReportsSpace(t *testing.T) {
	free, err := Free(t.TempDir())
	require.NoError(t, err)
	require.Greater(t, free, uint64(0))
}

// TestFree_MissingPath returns an error.
func TestFree_MissingPath(t *testing.T) {
	_, err := Free("/definitely/not/here")
	require.Error(t, err)
}

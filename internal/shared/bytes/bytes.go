package bytes

import (
	"fmt"
	"math"
)

const (
	KB = 1024
	MB = KB * 1024
	GB = MB * 1024
	TB = GB * 1024
)

func FmtMem(bytes uint64) string {
	switch {
	case bytes >= TB:
		return fmt.Sprintf("%dTB %dGB", bytes/TB, bytes%TB/GB)
	case bytes >= GB:
		return fmt.Sprintf("%dGB %dMB", bytes/GB, bytes%GB/MB)
	case bytes >= MB:
		return fmt.Sprintf("%dMB %dKB", bytes/MB, bytes%MB/KB)
	case bytes >= KB:
		return fmt.Sprintf("%dKB %dB", bytes/KB, bytes%KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// FmtLimit formats a byte budget where math.MaxUint64 stands for no limit.
func FmtLimit(bytes uint64) string {
	if bytes == math.MaxUint64 {
		return "INF"
	}
	return FmtMem(bytes)
}

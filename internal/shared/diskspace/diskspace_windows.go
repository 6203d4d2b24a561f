//go:build windows

package diskspace

import (
	"fmt"

	"golang.org/x/sys/windows"
)

func Free(path string) (uint64, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, fmt.Errorf("encode path %s: %w", path, err)
	}
	var available, total, free uint64
	if err = windows.GetDiskFreeSpaceEx(p, &available, &total, &free); err != nil {
		return 0, fmt.Errorf("get free space of %s: %w", path, err)
	}
	return available, nil
}

// Package diskspace reports free space of the volume holding a path.
package diskspace

import "errors"

var ErrUnsupported = errors.New("diskspace: free space probe is not supported on this platform")

// Probe returns free bytes available to the current user on the volume of path.
type Probe func(path string) (uint64, error)

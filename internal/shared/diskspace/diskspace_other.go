//go:build !(linux || darwin || freebsd || dragonfly || windows)

package diskspace

func Free(string) (uint64, error) {
	return 0, ErrUnsupported
}

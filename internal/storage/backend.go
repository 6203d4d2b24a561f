package storage

import (
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/zeebo/xxh3"
	bolt "go.etcd.io/bbolt"
)

// Backend tells where a payload lives.
type Backend uint8

const (
	// Inline payloads are stored inside the manifest database.
	Inline Backend = iota
	// File payloads are stored as loose files under data/.
	File
)

const (
	// NoInlineLimit keeps every payload inline.
	NoInlineLimit uint64 = math.MaxUint64

	MaxKeyLength      = bolt.MaxKeySize
	maxFilenameLength = 255
)

func (b Backend) String() string {
	switch b {
	case Inline:
		return "inline"
	case File:
		return "file"
	default:
		return fmt.Sprintf("backend(%d)", uint8(b))
	}
}

// Decide picks the backend for a payload of the given size.
// Payloads up to and including threshold bytes stay inline.
func Decide(size int, threshold uint64) Backend {
	if uint64(size) <= threshold {
		return Inline
	}
	return File
}

// FilenameForKey derives the loose file name of a key: the lower-case hex
// of its 128-bit xxh3 hash. Same key, same name, across processes.
func FilenameForKey(key string) string {
	sum := xxh3.HashString128(key).Bytes()
	return hex.EncodeToString(sum[:])
}

func validateKey(key string) error {
	switch {
	case key == "":
		return ErrEmptyKey
	case len(key) > MaxKeyLength:
		return fmt.Errorf("%w: %d bytes", ErrKeyTooLong, len(key))
	}
	return nil
}

func validateFilename(name string) error {
	if name == "" || name == "." || name == ".." ||
		len(name) > maxFilenameLength ||
		strings.ContainsAny(name, `/\`+"\x00") ||
		strings.HasPrefix(name, tempPrefix) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}

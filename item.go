package tiercache

import "strings"

// Type selects the tiers an operation touches.
type Type uint8

const (
	TypeMemory Type = 1 << iota
	TypeDisk

	TypeNone Type = 0
	TypeAll       = TypeMemory | TypeDisk
)

func (t Type) Has(other Type) bool {
	return other != TypeNone && t&other == other
}

func (t Type) String() string {
	if t == TypeNone {
		return "none"
	}
	var parts []string
	if t.Has(TypeMemory) {
		parts = append(parts, "memory")
	}
	if t.Has(TypeDisk) {
		parts = append(parts, "disk")
	}
	return strings.Join(parts, "|")
}

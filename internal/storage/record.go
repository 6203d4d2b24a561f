package storage

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Record is one stored item. Value is nil for metadata-only lookups.
type Record struct {
	Key        string
	Value      []byte
	Backend    Backend
	Filename   string
	Size       int64
	ModTime    time.Time
	AccessTime time.Time
	Extra      []byte
}

// meta is the manifest row of a key.
type meta struct {
	Size       int64  `msgpack:"s"`
	Stored     int64  `msgpack:"d"`
	ModTime    int64  `msgpack:"m"`
	AccessTime int64  `msgpack:"a"`
	Filename   string `msgpack:"f,omitempty"`
	Extra      []byte `msgpack:"x,omitempty"`
	Compressed bool   `msgpack:"c,omitempty"`
}

func (m *meta) backend() Backend {
	if m.Filename != "" {
		return File
	}
	return Inline
}

func (m *meta) record(key string, value []byte) *Record {
	return &Record{
		Key:        key,
		Value:      value,
		Backend:    m.backend(),
		Filename:   m.Filename,
		Size:       m.Size,
		ModTime:    time.Unix(0, m.ModTime),
		AccessTime: time.Unix(0, m.AccessTime),
		Extra:      m.Extra,
	}
}

func encodeMeta(m *meta) ([]byte, error) {
	return msgpack.Marshal(m)
}

// decodeMeta copies everything it needs, so raw may be a bbolt value
// which is only valid inside its transaction.
func decodeMeta(raw []byte) (*meta, error) {
	m := new(meta)
	if err := msgpack.Unmarshal(raw, m); err != nil {
		return nil, fmt.Errorf("decode manifest row: %w", err)
	}
	m.Extra = bytes.Clone(m.Extra)
	return m, nil
}

// totals is kept under a fixed key so Count and Size don't scan the manifest.
type totals struct {
	Count int64 `msgpack:"n"`
	Size  int64 `msgpack:"s"`
}

package storage

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// compressor always decodes, so records written with compression stay
// readable after it is turned off. It only encodes when enc is set.
type compressor struct {
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	minSize int
}

func newCompressor(enabled bool, level, minSize int) (*compressor, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	c := &compressor{dec: dec, minSize: minSize}
	if enabled {
		if c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(clampLevel(level))); err != nil {
			dec.Close()
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	return c, nil
}

func clampLevel(level int) zstd.EncoderLevel {
	switch {
	case level <= int(zstd.SpeedFastest):
		return zstd.SpeedFastest
	case level >= int(zstd.SpeedBestCompression):
		return zstd.SpeedBestCompression
	default:
		return zstd.EncoderLevel(level)
	}
}

// pack returns the bytes to store and whether they are compressed.
// Compression is skipped when it doesn't shrink the payload.
func (c *compressor) pack(value []byte) ([]byte, bool) {
	if c.enc == nil || len(value) < c.minSize {
		return value, false
	}
	out := c.enc.EncodeAll(value, make([]byte, 0, len(value)/2))
	if len(out) >= len(value) {
		return value, false
	}
	return out, true
}

func (c *compressor) unpack(stored []byte, compressed bool, size int64) ([]byte, error) {
	if !compressed {
		return stored, nil
	}
	out, err := c.dec.DecodeAll(stored, make([]byte, 0, size))
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return out, nil
}

func (c *compressor) close() {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	c.dec.Close()
}

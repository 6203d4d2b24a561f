package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"
)

// Save stores value under key, replacing any previous record.
//
// A non-empty filename forces the file backend under that name. Otherwise the
// backend is picked by size and file-backed payloads are named by FilenameForKey.
// The loose file is written before the manifest row, so a crash in between
// leaves at most an orphan file and never a row pointing at nothing.
func (e *Engine) Save(key string, value []byte, filename string, extra []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return ErrEmptyValue
	}
	if filename != "" {
		if err := validateFilename(filename); err != nil {
			return err
		}
	} else if Decide(len(value), e.threshold) == File {
		filename = FilenameForKey(key)
	}

	old, err := e.meta(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	payload, compressed := e.codec.pack(value)
	now := e.now().UnixNano()
	row := &meta{
		Size:       int64(len(value)),
		Stored:     int64(len(payload)),
		ModTime:    now,
		AccessTime: now,
		Filename:   filename,
		Extra:      bytes.Clone(extra),
		Compressed: compressed,
	}

	if filename != "" {
		if err = e.writeFile(filename, payload); err != nil {
			e.logger.Error().Err(err).Str("key", key).Str("file", filename).Msg("save loose file")
			return err
		}
	}

	err = e.update(func(tx *bolt.Tx) error {
		raw, err := encodeMeta(row)
		if err != nil {
			return err
		}
		if err = tx.Bucket(manifestBucket).Put([]byte(key), raw); err != nil {
			return fmt.Errorf("put manifest row: %w", err)
		}
		inline := tx.Bucket(inlineBucket)
		if filename == "" {
			if err = inline.Put([]byte(key), payload); err != nil {
				return fmt.Errorf("put inline payload: %w", err)
			}
		} else if old != nil && old.Filename == "" {
			if err = inline.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete inline payload: %w", err)
			}
		}
		dCount, dSize := int64(1), row.Size
		if old != nil {
			dCount, dSize = 0, row.Size-old.Size
		}
		return addTotals(tx, dCount, dSize)
	})
	if err != nil {
		if filename != "" {
			_ = e.removeFile(filename)
		}
		e.logger.Error().Err(err).Str("key", key).Msg("save manifest row")
		return fmt.Errorf("save %q: %w", key, err)
	}

	if old != nil && old.Filename != "" && old.Filename != filename {
		_ = e.removeFile(old.Filename)
	}
	return nil
}

// Get returns the full record and marks it as accessed.
// A row whose loose file vanished is dropped and reported as ErrNotFound.
func (e *Engine) Get(key string) (*Record, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var (
		row    *meta
		stored []byte
	)
	err := e.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(manifestBucket).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		if row, err = decodeMeta(raw); err != nil {
			return err
		}
		if row.Filename == "" {
			stored = bytes.Clone(tx.Bucket(inlineBucket).Get([]byte(key)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if row.Filename != "" {
		if stored, err = e.readFile(row.Filename); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				e.dropStale(key, row)
				return nil, ErrNotFound
			}
			e.logger.Error().Err(err).Str("key", key).Str("file", row.Filename).Msg("read loose file")
			return nil, fmt.Errorf("read %q: %w", key, err)
		}
	} else if stored == nil {
		e.dropStale(key, row)
		return nil, ErrNotFound
	}

	value, err := e.codec.unpack(stored, row.Compressed, row.Size)
	if err != nil {
		e.logger.Error().Err(err).Str("key", key).Msg("unpack payload")
		return nil, fmt.Errorf("read %q: %w", key, err)
	}

	row.AccessTime = e.now().UnixNano()
	if err = e.touch(key, row.AccessTime); err != nil {
		e.logger.Error().Err(err).Str("key", key).Msg("update access time")
	}
	return row.record(key, value), nil
}

// GetValue is Get without the metadata.
func (e *Engine) GetValue(key string) ([]byte, error) {
	rec, err := e.Get(key)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// GetInfo returns the record without its value and leaves the access time alone.
func (e *Engine) GetInfo(key string) (*Record, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	row, err := e.meta(key)
	if err != nil {
		return nil, err
	}
	return row.record(key, nil), nil
}

// GetMany returns the records found among keys. Missing keys are skipped.
func (e *Engine) GetMany(keys []string) ([]*Record, error) {
	out := make([]*Record, 0, len(keys))
	for _, key := range keys {
		rec, err := e.Get(key)
		switch {
		case err == nil:
			out = append(out, rec)
		case errors.Is(err, ErrNotFound):
		default:
			return out, err
		}
	}
	return out, nil
}

func (e *Engine) Exists(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	var found bool
	err := e.view(func(tx *bolt.Tx) error {
		found = tx.Bucket(manifestBucket).Get([]byte(key)) != nil
		return nil
	})
	return found, err
}

// Remove deletes key. Removing a missing key is not an error.
// Both the loose file and the row are attempted, failures are joined.
func (e *Engine) Remove(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	row, err := e.meta(key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, _, err = e.removeVictims([]victim{{key: key, meta: row}})
	return err
}

func (e *Engine) RemoveKeys(keys []string) error {
	var errs []error
	for _, key := range keys {
		if err := e.Remove(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of records.
func (e *Engine) Count() (int64, error) {
	t, err := e.totals()
	return t.Count, err
}

// Size returns the sum of payload sizes in bytes, before compression.
func (e *Engine) Size() (int64, error) {
	t, err := e.totals()
	return t.Size, err
}

func (e *Engine) meta(key string) (*meta, error) {
	var row *meta
	err := e.view(func(tx *bolt.Tx) error {
		raw := tx.Bucket(manifestBucket).Get([]byte(key))
		if raw == nil {
			return ErrNotFound
		}
		var err error
		row, err = decodeMeta(raw)
		return err
	})
	return row, err
}

func (e *Engine) touch(key string, accessTime int64) error {
	return e.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(manifestBucket)
		raw := b.Get([]byte(key))
		if raw == nil {
			return nil
		}
		row, err := decodeMeta(raw)
		if err != nil {
			return err
		}
		row.AccessTime = accessTime
		if raw, err = encodeMeta(row); err != nil {
			return err
		}
		return b.Put([]byte(key), raw)
	})
}

func (e *Engine) dropStale(key string, row *meta) {
	e.logger.Error().Str("key", key).Str("file", row.Filename).Msg("payload is missing, dropping record")
	if _, _, err := e.removeVictims([]victim{{key: key, meta: row}}); err != nil {
		e.logger.Error().Err(err).Str("key", key).Msg("drop stale record")
	}
}

func (e *Engine) totals() (totals, error) {
	var t totals
	err := e.view(func(tx *bolt.Tx) error {
		var err error
		t, err = readTotals(tx)
		return err
	})
	return t, err
}

func readTotals(tx *bolt.Tx) (totals, error) {
	var t totals
	raw := tx.Bucket(statsBucket).Get(totalsKey)
	if raw == nil {
		return t, nil
	}
	if err := msgpack.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("decode totals: %w", err)
	}
	return t, nil
}

func addTotals(tx *bolt.Tx, dCount, dSize int64) error {
	t, err := readTotals(tx)
	if err != nil {
		return err
	}
	t.Count = max(t.Count+dCount, 0)
	t.Size = max(t.Size+dSize, 0)
	raw, err := msgpack.Marshal(&t)
	if err != nil {
		return err
	}
	return tx.Bucket(statsBucket).Put(totalsKey, raw)
}

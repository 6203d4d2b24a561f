package storage

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

const removeBatchSize = 64

type victim struct {
	key  string
	meta *meta
}

// lruOrder sorts by access time, oldest first, ties broken by key.
func lruOrder(a, b victim) int {
	switch {
	case a.meta.AccessTime < b.meta.AccessTime:
		return -1
	case a.meta.AccessTime > b.meta.AccessTime:
		return 1
	default:
		return strings.Compare(a.key, b.key)
	}
}

// scan returns every row in LRU order.
func (e *Engine) scan() ([]victim, error) {
	var out []victim
	err := e.view(func(tx *bolt.Tx) error {
		return tx.Bucket(manifestBucket).ForEach(func(k, v []byte) error {
			row, err := decodeMeta(v)
			if err != nil {
				e.logger.Error().Err(err).Str("key", string(k)).Msg("skip unreadable manifest row")
				return nil
			}
			out = append(out, victim{key: string(k), meta: row})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, lruOrder)
	return out, nil
}

// removeVictims deletes loose files first and then the rows of one batch in
// a single transaction. Rows are dropped even when their file removal failed,
// so the store never keeps a row whose removal was requested.
func (e *Engine) removeVictims(victims []victim) (removed int, freed int64, err error) {
	var errs []error
	for start := 0; start < len(victims); start += removeBatchSize {
		batch := victims[start:min(start+removeBatchSize, len(victims))]
		for _, v := range batch {
			if v.meta.Filename != "" {
				if err := e.removeFile(v.meta.Filename); err != nil {
					errs = append(errs, err)
				}
			}
		}

		var n int
		var bytes int64
		err := e.update(func(tx *bolt.Tx) error {
			n, bytes = 0, 0
			manifest, inline := tx.Bucket(manifestBucket), tx.Bucket(inlineBucket)
			for _, v := range batch {
				if manifest.Get([]byte(v.key)) == nil {
					continue
				}
				if err := manifest.Delete([]byte(v.key)); err != nil {
					return fmt.Errorf("delete manifest row: %w", err)
				}
				if err := inline.Delete([]byte(v.key)); err != nil {
					return fmt.Errorf("delete inline payload: %w", err)
				}
				n++
				bytes += v.meta.Size
			}
			return addTotals(tx, -int64(n), -bytes)
		})
		if err != nil {
			e.logger.Error().Err(err).Int("batch", len(batch)).Msg("remove records")
			errs = append(errs, err)
			break
		}
		removed += n
		freed += bytes
	}
	return removed, freed, errors.Join(errs...)
}

// RemoveLargerThan removes every record whose payload is bigger than size bytes.
func (e *Engine) RemoveLargerThan(size int64) (int, error) {
	all, err := e.scan()
	if err != nil {
		return 0, err
	}
	victims := slices.DeleteFunc(all, func(v victim) bool { return v.meta.Size <= size })
	n, _, err := e.removeVictims(victims)
	return n, err
}

// RemoveAccessedBefore removes every record last accessed before t.
func (e *Engine) RemoveAccessedBefore(t time.Time) (int, error) {
	all, err := e.scan()
	if err != nil {
		return 0, err
	}
	cutoff := t.UnixNano()
	victims := slices.DeleteFunc(all, func(v victim) bool { return v.meta.AccessTime >= cutoff })
	n, _, err := e.removeVictims(victims)
	return n, err
}

// TrimToSize removes least recently accessed records until the total size is at most maxSize.
func (e *Engine) TrimToSize(maxSize int64) (int, error) {
	return e.trimUntil(func(count, size int64) bool { return size <= maxSize })
}

// TrimToCount removes least recently accessed records until at most maxCount remain.
func (e *Engine) TrimToCount(maxCount int64) (int, error) {
	return e.trimUntil(func(count, size int64) bool { return count <= maxCount })
}

// TrimBytes removes least recently accessed records until at least n bytes
// of payload were freed or the store is empty.
func (e *Engine) TrimBytes(n int64) (removed int, freed int64, err error) {
	if n <= 0 {
		return 0, 0, nil
	}
	all, err := e.scan()
	if err != nil {
		return 0, 0, err
	}
	end := 0
	for end < len(all) && freed < n {
		freed += all[end].meta.Size
		end++
	}
	return e.removeVictims(all[:end])
}

func (e *Engine) trimUntil(satisfied func(count, size int64) bool) (int, error) {
	t, err := e.totals()
	if err != nil {
		return 0, err
	}
	if satisfied(t.Count, t.Size) {
		return 0, nil
	}
	all, err := e.scan()
	if err != nil {
		return 0, err
	}

	count, size := t.Count, t.Size
	end := 0
	for end < len(all) && !satisfied(count, size) {
		count--
		size -= all[end].meta.Size
		end++
	}
	n, _, err := e.removeVictims(all[:end])
	return n, err
}

// RemoveAllWithProgress removes records one batch at a time and reports
// progress after every batch. It is slower than RemoveAll but lets callers
// show how far it got.
func (e *Engine) RemoveAllWithProgress(progress func(removed, total int)) error {
	all, err := e.scan()
	if err != nil {
		return err
	}
	total := len(all)
	if progress != nil {
		progress(0, total)
	}

	removed := 0
	for start := 0; start < total; start += removeBatchSize {
		batch := all[start:min(start+removeBatchSize, total)]
		n, _, err := e.removeVictims(batch)
		removed += n
		if err != nil {
			return fmt.Errorf("remove all: %d of %d removed: %w", removed, total, err)
		}
		if progress != nil {
			progress(removed, total)
		}
	}
	return nil
}

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/ratelimit"
)

const (
	manifestFile = "manifest.db"
	dataDir      = "data"
	trashDir     = "trash"
	tempPrefix   = ".tmp-"

	defaultInlineThreshold = 20 * 1024

	defaultLockTimeout = time.Second
)

var (
	manifestBucket = []byte("manifest")
	inlineBucket   = []byte("inline")
	statsBucket    = []byte("stats")
	totalsKey      = []byte("totals")
)

// registry guards against two engines sharing one directory inside a process.
// Other processes are kept out by the bbolt file lock.
var registry = struct {
	sync.Mutex
	paths map[string]struct{}
}{paths: make(map[string]struct{})}

// Engine maps string keys to byte payloads on disk. Small payloads are kept in
// a bbolt database, large ones in loose files next to it.
//
// Engine methods are safe to call from several goroutines, but the disk cache
// serializes all access through one worker anyway.
type Engine struct {
	mu     sync.RWMutex
	root   string
	db     *bolt.DB // nil after RemoveAll failed to reopen it
	fs     billy.Filesystem
	closed bool

	threshold   uint64
	lockTimeout time.Duration
	logger      zerolog.Logger
	codec       *compressor
	now         func() time.Time

	compression      bool
	compressionLevel int
	compressionMin   int

	purges     sync.WaitGroup
	purgeRate  ratelimit.Limiter
	stopPurges chan struct{}
}

type Option func(*Engine)

// WithInlineThreshold sets the largest payload kept inline. Use NoInlineLimit
// to keep everything inline and 0 to send everything to files.
func WithInlineThreshold(threshold uint64) Option {
	return func(e *Engine) { e.threshold = threshold }
}

// WithLogger sets the logger for I/O errors. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithCompression enables zstd for payloads of at least minSize bytes.
func WithCompression(level, minSize int) Option {
	return func(e *Engine) {
		e.compression = true
		e.compressionLevel = level
		e.compressionMin = minSize
	}
}

// WithLockTimeout bounds the wait for the manifest file lock. Non-positive keeps the default.
func WithLockTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.lockTimeout = timeout
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPurgeRate bounds how many trashed files per second the background purge
// deletes. Non-positive means no bound.
func WithPurgeRate(filesPerSec int) Option {
	return func(e *Engine) {
		if filesPerSec > 0 {
			e.purgeRate = ratelimit.New(filesPerSec)
		}
	}
}

// Open creates the directory layout if needed and opens the manifest.
func Open(path string, opts ...Option) (*Engine, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: empty path")
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", path, err)
	}
	root, err := CanonicalPath(path)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		root:        root,
		threshold:   defaultInlineThreshold,
		lockTimeout: defaultLockTimeout,
		logger:      zerolog.Nop(),
		now:         time.Now,
		purgeRate:   ratelimit.NewUnlimited(),
		stopPurges:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	registry.Lock()
	defer registry.Unlock()
	if _, busy := registry.paths[root]; busy {
		return nil, fmt.Errorf("%w: %s", ErrPathInUse, root)
	}

	if e.codec, err = newCompressor(e.compression, e.compressionLevel, e.compressionMin); err != nil {
		return nil, err
	}
	e.fs = osfs.New(root)
	for _, dir := range []string{dataDir, trashDir} {
		if err = e.fs.MkdirAll(dir, 0o755); err != nil {
			e.codec.close()
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	if err = e.openDB(); err != nil {
		e.codec.close()
		return nil, err
	}

	registry.paths[root] = struct{}{}
	e.sweepTemp()
	e.purgeTrash()
	return e, nil
}

// CanonicalPath resolves path to an absolute path without symlinks.
// The directory must exist.
func CanonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve path %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("resolve symlinks of %s: %w", abs, err)
	}
	return resolved, nil
}

func (e *Engine) Path() string {
	return e.root
}

func (e *Engine) openDB() error {
	db, err := bolt.Open(filepath.Join(e.root, manifestFile), 0o600, &bolt.Options{Timeout: e.lockTimeout})
	if err != nil {
		return fmt.Errorf("open manifest %s: %w", e.root, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{manifestBucket, inlineBucket, statsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return err
	}
	e.db = db
	return nil
}

// Close waits for background purges and releases the directory.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	var err error
	if e.db != nil {
		err = e.db.Close()
		e.db = nil
	}
	e.mu.Unlock()

	close(e.stopPurges)
	e.purges.Wait()
	e.codec.close()

	registry.Lock()
	delete(registry.paths, e.root)
	registry.Unlock()

	if err != nil {
		return fmt.Errorf("close manifest: %w", err)
	}
	return nil
}

// RemoveAll drops every record. The manifest and data directory are moved
// into trash/ and deleted in the background, so the call is fast regardless
// of how much is stored.
func (e *Engine) RemoveAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.db == nil {
		return ErrClosed
	}

	bin, err := util.TempDir(e.fs, trashDir, "purge-")
	if err != nil {
		return fmt.Errorf("create trash dir: %w", err)
	}
	if err = e.db.Close(); err != nil {
		e.logger.Error().Err(err).Str("path", e.root).Msg("close manifest before remove all")
	}

	var errs []error
	for _, name := range []string{manifestFile, dataDir} {
		if err := e.fs.Rename(name, e.fs.Join(bin, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("move %s to trash: %w", name, err))
		}
	}
	if err := e.fs.MkdirAll(dataDir, 0o755); err != nil {
		errs = append(errs, fmt.Errorf("recreate data dir: %w", err))
	}
	if len(errs) > 0 {
		// fall back to deleting in place so the reopened manifest is empty
		_ = util.RemoveAll(e.fs, manifestFile)
	}
	e.db = nil
	if err := e.openDB(); err != nil {
		errs = append(errs, err)
	}

	e.purgeBins(bin)
	return errors.Join(errs...)
}

// purgeTrash deletes everything left under trash/ in the background.
func (e *Engine) purgeTrash() {
	entries, err := e.fs.ReadDir(trashDir)
	if err != nil {
		e.logger.Error().Err(err).Str("path", e.root).Msg("list trash")
		return
	}
	bins := make([]string, 0, len(entries))
	for _, entry := range entries {
		bins = append(bins, e.fs.Join(trashDir, entry.Name()))
	}
	e.purgeBins(bins...)
}

func (e *Engine) purgeBins(bins ...string) {
	if len(bins) == 0 {
		return
	}
	e.purges.Go(func() {
		for _, name := range bins {
			if err := e.purge(name); errors.Is(err, errPurgeStopped) {
				return
			} else if err != nil {
				e.logger.Error().Err(err).Str("path", name).Msg("purge trash")
			}
		}
	})
}

var errPurgeStopped = errors.New("purge stopped")

// purge deletes the files under dir one by one at the configured rate, then
// dir itself. Close interrupts it; the rest is purged on the next Open.
func (e *Engine) purge(dir string) error {
	entries, err := e.fs.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := e.fs.Join(dir, entry.Name())
		if entry.IsDir() {
			if err = e.purge(name); err != nil {
				return err
			}
			continue
		}
		select {
		case <-e.stopPurges:
			return errPurgeStopped
		default:
		}
		e.purgeRate.Take()
		if err = e.fs.Remove(name); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return util.RemoveAll(e.fs, dir)
}

// WaitPurges blocks until background trash purges started so far are done.
func (e *Engine) WaitPurges() {
	e.purges.Wait()
}

func (e *Engine) view(fn func(tx *bolt.Tx) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || e.db == nil {
		return ErrClosed
	}
	return e.db.View(fn)
}

func (e *Engine) update(fn func(tx *bolt.Tx) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || e.db == nil {
		return ErrClosed
	}
	return e.db.Update(fn)
}

// withFiles runs fn while the data directory can't be swapped by RemoveAll.
func (e *Engine) withFiles(fn func() error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || e.db == nil {
		return ErrClosed
	}
	return fn()
}

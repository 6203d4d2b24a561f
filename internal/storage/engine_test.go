package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// tickingClock advances by one millisecond on every read so access times are distinct.
type tickingClock struct {
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func openEngine(t *testing.T, dir string, opts ...Option) *Engine {
	t.Helper()
	clock := &tickingClock{now: time.Unix(1_700_000_000, 0)}
	e, err := Open(dir, append([]Option{WithClock(clock.Now)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func dataFileExists(t *testing.T, e *Engine, name string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(e.Path(), dataDir, name))
	return err == nil
}

// TestEngine_SaveGetRoundTrip verifies that a saved value and its extra data come back unchanged.
func TestEngine_SaveGetRoundTrip(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.NoError(t, e.Save("k1", []byte("hello"), "", []byte("meta")))

	rec, err := e.Get("k1")
	require.NoError(t, err)
	require.Equal(t, "k1", rec.Key)
	require.Equal(t, []byte("hello"), rec.Value)
	require.Equal(t, []byte("meta"), rec.Extra)
	require.Equal(t, int64(5), rec.Size)
	require.Equal(t, Inline, rec.Backend)
	require.Empty(t, rec.Filename)

	ok, err := e.Exists("k1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, e.Remove("k1"))
	_, err = e.Get("k1")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestEngine_ThresholdRouting verifies inline and file placement around the threshold.
func TestEngine_ThresholdRouting(t *testing.T) {
	e := openEngine(t, t.TempDir(), WithInlineThreshold(100))

	small := bytes.Repeat([]byte("s"), 50)
	exact := bytes.Repeat([]byte("e"), 100)
	large := bytes.Repeat([]byte("l"), 500)

	require.NoError(t, e.Save("small", small, "", nil))
	require.NoError(t, e.Save("exact", exact, "", nil))
	require.NoError(t, e.Save("large", large, "", nil))

	for key, want := range map[string]Backend{"small": Inline, "exact": Inline, "large": File} {
		info, err := e.GetInfo(key)
		require.NoError(t, err)
		require.Equal(t, want, info.Backend, key)
	}

	info, err := e.GetInfo("large")
	require.NoError(t, err)
	require.Equal(t, FilenameForKey("large"), info.Filename)
	require.True(t, dataFileExists(t, e, info.Filename))

	rec, err := e.Get("large")
	require.NoError(t, err)
	require.Equal(t, large, rec.Value)
}

// TestEngine_ThresholdExtremes verifies the all-file and all-inline settings.
func TestEngine_ThresholdExtremes(t *testing.T) {
	allFiles := openEngine(t, t.TempDir(), WithInlineThreshold(0))
	require.NoError(t, allFiles.Save("k", []byte("x"), "", nil))
	info, err := allFiles.GetInfo("k")
	require.NoError(t, err)
	require.Equal(t, File, info.Backend)

	allInline := openEngine(t, t.TempDir(), WithInlineThreshold(NoInlineLimit))
	require.NoError(t, allInline.Save("k", bytes.Repeat([]byte("x"), 1<<20), "", nil))
	info, err = allInline.GetInfo("k")
	require.NoError(t, err)
	require.Equal(t, Inline, info.Backend)
}

// TestEngine_ExplicitFilename forces the file backend under the given name.
func TestEngine_ExplicitFilename(t *testing.T) {
	e := openEngine(t, t.TempDir(), WithInlineThreshold(NoInlineLimit))

	require.NoError(t, e.Save("k", []byte("tiny"), "avatar.png", nil))
	info, err := e.GetInfo("k")
	require.NoError(t, err)
	require.Equal(t, File, info.Backend)
	require.Equal(t, "avatar.png", info.Filename)
	require.True(t, dataFileExists(t, e, "avatar.png"))
}

// TestEngine_OverwriteMovesBetweenBackends verifies old payloads are cleaned up on backend change.
func TestEngine_OverwriteMovesBetweenBackends(t *testing.T) {
	e := openEngine(t, t.TempDir(), WithInlineThreshold(10))
	name := FilenameForKey("k")

	require.NoError(t, e.Save("k", bytes.Repeat([]byte("L"), 100), "", nil))
	require.True(t, dataFileExists(t, e, name))

	require.NoError(t, e.Save("k", []byte("short"), "", nil))
	require.False(t, dataFileExists(t, e, name), "file payload must be removed after moving inline")

	rec, err := e.Get("k")
	require.NoError(t, err)
	require.Equal(t, []byte("short"), rec.Value)
	require.Equal(t, Inline, rec.Backend)

	require.NoError(t, e.Save("k", []byte("renamed"), "custom.bin", nil))
	require.NoError(t, e.Save("k", bytes.Repeat([]byte("B"), 50), "", nil))
	require.False(t, dataFileExists(t, e, "custom.bin"), "previous file must be removed after rename")
	require.True(t, dataFileExists(t, e, name))

	count, err := e.Count()
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
	size, err := e.Size()
	require.NoError(t, err)
	require.Equal(t, int64(50), size)
}

// TestEngine_MissingFileIsMiss verifies that a row whose file vanished self-heals into a miss.
func TestEngine_MissingFileIsMiss(t *testing.T) {
	e := openEngine(t, t.TempDir(), WithInlineThreshold(0))

	require.NoError(t, e.Save("k", []byte("payload"), "", nil))
	require.NoError(t, os.Remove(filepath.Join(e.Path(), dataDir, FilenameForKey("k"))))

	_, err := e.Get("k")
	require.ErrorIs(t, err, ErrNotFound)

	ok, err := e.Exists("k")
	require.NoError(t, err)
	require.False(t, ok, "stale row must be dropped")

	count, err := e.Count()
	require.NoError(t, err)
	require.Zero(t, count)
}

// TestEngine_Validation rejects empty keys, empty values and bad file names.
func TestEngine_Validation(t *testing.T) {
	e := openEngine(t, t.TempDir())

	require.ErrorIs(t, e.Save("", []byte("v"), "", nil), ErrEmptyKey)
	require.ErrorIs(t, e.Save("k", nil, "", nil), ErrEmptyValue)
	require.ErrorIs(t, e.Save(strings.Repeat("k", MaxKeyLength+1), []byte("v"), "", nil), ErrKeyTooLong)
	for _, bad := range []string{".", "..", "a/b", `a\b`, tempPrefix + "x"} {
		require.ErrorIs(t, e.Save("k", []byte("v"), bad, nil), ErrInvalidFilename, bad)
	}

	_, err := e.Get("")
	require.ErrorIs(t, err, ErrEmptyKey)
	require.ErrorIs(t, e.Remove(""), ErrEmptyKey)
}

// TestEngine_RemoveMissingKey is a no-op.
func TestEngine_RemoveMissingKey(t *testing.T) {
	e := openEngine(t, t.TempDir())
	require.NoError(t, e.Remove("absent"))
	require.NoError(t, e.RemoveKeys([]string{"a", "b"}))
}

// TestEngine_GetInfoDoesNotTouch verifies that metadata lookups keep the access time.
func TestEngine_GetInfoDoesNotTouch(t *testing.T) {
	e := openEngine(t, t.TempDir())
	require.NoError(t, e.Save("k", []byte("v"), "", nil))

	before, err := e.GetInfo("k")
	require.NoError(t, err)
	again, err := e.GetInfo("k")
	require.NoError(t, err)
	require.Equal(t, before.AccessTime, again.AccessTime)
	require.Nil(t, again.Value)

	rec, err := e.Get("k")
	require.NoError(t, err)
	require.True(t, rec.AccessTime.After(before.AccessTime))
	require.Equal(t, before.ModTime, rec.ModTime)
}

// TestEngine_GetMany skips missing keys.
func TestEngine_GetMany(t *testing.T) {
	e := openEngine(t, t.TempDir())
	require.NoError(t, e.Save("a", []byte("1"), "", nil))
	require.NoError(t, e.Save("c", []byte("3"), "", nil))

	recs, err := e.GetMany([]string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "a", recs[0].Key)
	require.Equal(t, "c", recs[1].Key)

	v, err := e.GetValue("c")
	require.NoError(t, err)
	require.Equal(t, []byte("3"), v)
}

// TestEngine_PathInUse rejects a second engine on the same directory, also through a symlink.
func TestEngine_PathInUse(t *testing.T) {
	dir := t.TempDir()
	e := openEngine(t, dir)

	_, err := Open(dir)
	require.ErrorIs(t, err, ErrPathInUse)

	link := filepath.Join(t.TempDir(), "link")
	require.NoError(t, os.Symlink(dir, link))
	_, err = Open(link)
	require.ErrorIs(t, err, ErrPathInUse)

	require.NoError(t, e.Close())
	again, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

// TestEngine_Persistence verifies that records survive reopening.
func TestEngine_Persistence(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir, WithInlineThreshold(4))
	require.NoError(t, err)
	require.NoError(t, e.Save("inline", []byte("abc"), "", []byte("x")))
	require.NoError(t, e.Save("file", []byte("abcdefgh"), "", nil))
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	e = openEngine(t, dir, WithInlineThreshold(4))
	rec, err := e.Get("inline")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), rec.Value)
	require.Equal(t, []byte("x"), rec.Extra)

	rec, err = e.Get("file")
	require.NoError(t, err)
	require.Equal(t, []byte("abcdefgh"), rec.Value)

	count, err := e.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

// TestEngine_ClosedEngine returns ErrClosed.
func TestEngine_ClosedEngine(t *testing.T) {
	e, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, e.Close())

	require.ErrorIs(t, e.Save("k", []byte("v"), "", nil), ErrClosed)
	_, err = e.Get("k")
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, e.RemoveAll(), ErrClosed)
}

// TestEngine_CloseAfterFailedReopen verifies that an engine whose manifest could not be
// reopened still releases its directory on Close.
func TestEngine_CloseAfterFailedReopen(t *testing.T) {
	dir := t.TempDir()
	e, err := Open(dir)
	require.NoError(t, err)

	e.mu.Lock()
	require.NoError(t, e.db.Close())
	e.db = nil
	e.mu.Unlock()

	require.ErrorIs(t, e.Save("k", []byte("v"), "", nil), ErrClosed)
	require.ErrorIs(t, e.RemoveAll(), ErrClosed)
	require.NoError(t, e.Close())

	again, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, again.Save("k", []byte("v"), "", nil))
	require.NoError(t, again.Close())
}

// TestEngine_Compression stores compressible payloads smaller and reads them back.
func TestEngine_Compression(t *testing.T) {
	dir := t.TempDir()
	payload := bytes.Repeat([]byte("compressible "), 4096)

	e, err := Open(dir, WithInlineThreshold(0), WithCompression(3, 64))
	require.NoError(t, err)
	require.NoError(t, e.Save("big", payload, "", nil))
	require.NoError(t, e.Save("tiny", []byte("abc"), "", nil))

	st, err := os.Stat(filepath.Join(e.Path(), dataDir, FilenameForKey("big")))
	require.NoError(t, err)
	require.Less(t, st.Size(), int64(len(payload)))

	size, err := e.Size()
	require.NoError(t, err)
	require.Equal(t, int64(len(payload)+3), size, "size counts uncompressed bytes")
	require.NoError(t, e.Close())

	e = openEngine(t, dir, WithInlineThreshold(0))
	rec, err := e.Get("big")
	require.NoError(t, err)
	require.Equal(t, payload, rec.Value, "compressed records stay readable without compression")

	rec, err = e.Get("tiny")
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), rec.Value)
}

// TestDecide verifies the pure tier decision.
func TestDecide(t *testing.T) {
	require.Equal(t, Inline, Decide(50, 100))
	require.Equal(t, Inline, Decide(100, 100))
	require.Equal(t, File, Decide(101, 100))
	require.Equal(t, File, Decide(1, 0))
	require.Equal(t, Inline, Decide(1<<30, NoInlineLimit))
}

// TestFilenameForKey is deterministic and filesystem safe.
func TestFilenameForKey(t *testing.T) {
	a := FilenameForKey("https://example.com/a.png")
	require.Equal(t, a, FilenameForKey("https://example.com/a.png"))
	require.NotEqual(t, a, FilenameForKey("https://example.com/b.png"))
	require.Len(t, a, 32)
	require.NoError(t, validateFilename(a))
}

package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-git/go-billy/v5/util"
)

type syncer interface {
	Sync() error
}

// writeFile replaces data/<name> atomically: the payload goes to a temp file
// in the same directory first and is renamed over the target afterwards.
func (e *Engine) writeFile(name string, payload []byte) error {
	return e.withFiles(func() error {
		f, err := e.fs.TempFile(dataDir, tempPrefix)
		if err != nil {
			return fmt.Errorf("create temp file: %w", err)
		}
		tmp := f.Name()

		if _, err = f.Write(payload); err == nil {
			if s, ok := f.(syncer); ok {
				err = s.Sync()
			}
		}
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
		if err == nil {
			err = e.fs.Rename(tmp, e.fs.Join(dataDir, name))
		}
		if err != nil {
			_ = e.fs.Remove(tmp)
			return fmt.Errorf("write file %s: %w", name, err)
		}
		return nil
	})
}

func (e *Engine) readFile(name string) (data []byte, err error) {
	err = e.withFiles(func() error {
		f, err := e.fs.Open(e.fs.Join(dataDir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		data, err = io.ReadAll(f)
		return err
	})
	return data, err
}

// removeFile treats a missing file as removed.
func (e *Engine) removeFile(name string) error {
	err := e.withFiles(func() error {
		return e.fs.Remove(e.fs.Join(dataDir, name))
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Error().Err(err).Str("file", name).Msg("remove loose file")
		return fmt.Errorf("remove file %s: %w", name, err)
	}
	return nil
}

// sweepTemp removes temp files left behind by writes interrupted by a crash.
func (e *Engine) sweepTemp() {
	entries, err := e.fs.ReadDir(dataDir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), tempPrefix) {
			_ = util.RemoveAll(e.fs, e.fs.Join(dataDir, entry.Name()))
		}
	}
}

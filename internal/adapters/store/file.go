package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// File stores each key as <dir>/<key>.json. Writes go to a temporary file in
// the same directory which is then renamed over the target, so a crash never
// leaves a half-written document behind.
type File struct {
	fs  afero.Fs
	dir string
}

// NewFile returns a File store rooted at dir on fs. The directory is created
// on first write.
func NewFile(fs afero.Fs, dir string) *File {
	return &File{fs: fs, dir: dir}
}

func (f *File) path(key string) (string, error) {
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(f.dir, key+".json"), nil
}

func (f *File) Read(_ context.Context, key string) (data []byte, found bool, err error) {
	start := time.Now()
	defer func() { observe(BackendFile, "read", start, err) }()

	p, err := f.path(key)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrRead, err)
	}
	data, err = afero.ReadFile(f.fs, p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %s: %w", ErrRead, p, err)
	}
	return data, true, nil
}

func (f *File) Write(_ context.Context, key string, data []byte) (err error) {
	start := time.Now()
	defer func() { observe(BackendFile, "write", start, err) }()

	p, err := f.path(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	if err = f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %w", ErrWrite, f.dir, err)
	}
	tmp, err := afero.TempFile(f.fs, f.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: temp file: %w", ErrWrite, err)
	}
	tmpName := tmp.Name()
	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrWrite, tmpName, err)
	}
	if err = tmp.Close(); err != nil {
		_ = f.fs.Remove(tmpName)
		return fmt.Errorf("%w: %s: %w", ErrWrite, tmpName, err)
	}
	if err = f.fs.Rename(tmpName, p); err != nil {
		_ = f.fs.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %w", ErrWrite, p, err)
	}
	return nil
}

func (f *File) Name() string { return BackendFile }

func (f *File) Close() error { return nil }

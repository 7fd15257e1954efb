package filestore

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Local stores objects as files under Root.
type Local struct {
	Root string
}

func NewLocal(root string) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Local{Root: root}, nil
}

func (l *Local) abs(p string) (string, error) {
	key, err := cleanKey(p)
	if err != nil {
		return "", err
	}
	return filepath.Join(l.Root, filepath.FromSlash(key)), nil
}

func (l *Local) Save(ctx context.Context, owner, name string, r io.Reader) (Object, error) {
	key := ObjectName(owner, name)
	if err := l.Put(ctx, key, r); err != nil {
		return Object{}, err
	}
	full, _ := l.abs(key)
	fi, err := os.Stat(full)
	if err != nil {
		return Object{}, err
	}
	mt, err := mimetype.DetectFile(full)
	if err != nil {
		return Object{}, err
	}
	return Object{MimeType: mt.String(), Size: fi.Size(), Path: key}, nil
}

// Put writes through a temp file in the target directory and renames it into
// place.
func (l *Local) Put(ctx context.Context, p string, r io.Reader) error {
	full, err := l.abs(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".put-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), full)
}

func (l *Local) Open(_ context.Context, p string) (io.ReadCloser, error) {
	full, err := l.abs(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (l *Local) Exists(_ context.Context, p string) (bool, error) {
	full, err := l.abs(p)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(full)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

func (l *Local) Remove(_ context.Context, p string) error {
	full, err := l.abs(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Localize returns the stored file itself.
func (l *Local) Localize(_ context.Context, p string) (string, func(), error) {
	full, err := l.abs(p)
	if err != nil {
		return "", noop, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", noop, ErrNotFound
		}
		return "", noop, err
	}
	return full, noop, nil
}

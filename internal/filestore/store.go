// Package filestore keeps uploaded blobs and generated text artifacts, on
// local disk or in an S3 bucket.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an object does not exist.
var ErrNotFound = errors.New("object not found")

// Object describes a stored upload.
type Object struct {
	MimeType string
	Size     int64
	Path     string
}

// Store is the blob storage contract. Paths are slash-separated keys relative
// to the backend root.
type Store interface {
	// Save stores r under a fresh name owned by owner and sniffs its type.
	Save(ctx context.Context, owner, name string, r io.Reader) (Object, error)
	// Put writes r at p, replacing any existing object.
	Put(ctx context.Context, p string, r io.Reader) error
	Open(ctx context.Context, p string) (io.ReadCloser, error)
	Exists(ctx context.Context, p string) (bool, error)
	// Remove deletes p; a missing object is not an error.
	Remove(ctx context.Context, p string) error
	// Localize returns a local filesystem path holding the object's bytes.
	// cleanup must be called when the path is no longer needed.
	Localize(ctx context.Context, p string) (local string, cleanup func(), err error)
}

// ObjectName returns "<owner>/<uuid>-<base>" for an upload named name.
func ObjectName(owner, name string) string {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		base = "upload"
	}
	return fmt.Sprintf("%s/%s-%s", owner, uuid.NewString(), base)
}

// ArtifactPath returns the key of a derived text artifact, e.g. "content" or
// "summary", stored next to the upload at p.
func ArtifactPath(p, artifact string) string {
	dir, base := path.Split(p)
	if ext := path.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return dir + base + "." + artifact + ".txt"
}

// ReadAll reads the whole object at p.
func ReadAll(ctx context.Context, s Store, p string) ([]byte, error) {
	rc, err := s.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func cleanKey(p string) (string, error) {
	c := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	c = strings.TrimPrefix(c, "/")
	if c == "" || c == "." {
		return "", fmt.Errorf("invalid object path %q", p)
	}
	return c, nil
}

func noop() {}

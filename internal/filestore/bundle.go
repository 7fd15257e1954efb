package filestore

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"time"
)

// Entry names one object to include in a bundle.
type Entry struct {
	Name string
	Path string
}

// Bundle streams a zip archive of entries to w. Entries with an empty Path are
// skipped; a missing object fails the bundle.
func Bundle(ctx context.Context, s Store, w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, e := range entries {
		if e.Path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := addEntry(ctx, s, zw, e); err != nil {
			return fmt.Errorf("bundle %s: %w", e.Name, err)
		}
	}
	return zw.Close()
}

func addEntry(ctx context.Context, s Store, zw *zip.Writer, e Entry) error {
	rc, err := s.Open(ctx, e.Path)
	if err != nil {
		return err
	}
	defer rc.Close()
	fw, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.Name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return err
	}
	_, err = io.Copy(fw, rc)
	return err
}

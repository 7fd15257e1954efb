package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type FileUpload struct {
	ID          int64
	UserID      int64
	Filename    string
	MimeType    string
	Size        int64
	Path        string
	Subject     string
	ContentPath string
	SummaryPath string
	CreatedAt   time.Time
}

// Processed reports whether both text artifacts have been recorded.
func (f FileUpload) Processed() bool {
	return f.ContentPath != "" && f.SummaryPath != ""
}

// FileUpdate holds the fields to change; nil fields are left as is.
type FileUpdate struct {
	Subject     *string
	ContentPath *string
	SummaryPath *string
}

// VisibleFile is a file a user may read, flagged when it was shared with them.
type VisibleFile struct {
	FileUpload
	Shared bool
}

const fileColumns = `id, user_id, filename, mime_type, size, path, subject, content_path, summary_path, created_at`

// fileAttributes lists the columns FilesBy may filter on.
var fileAttributes = map[string]bool{
	"user_id":   true,
	"filename":  true,
	"mime_type": true,
	"subject":   true,
	"path":      true,
}

// CreateFile inserts f and sets its ID. An existing path returns ErrConflict,
// an unknown owner ErrNotFound.
func (s *Store) CreateFile(ctx context.Context, f *FileUpload) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO file_uploads(user_id, filename, mime_type, size, path, subject, content_path, summary_path, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
`, f.UserID, f.Filename, f.MimeType, f.Size, f.Path, f.Subject, f.ContentPath, f.SummaryPath, f.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("file path %s: %w", f.Path, ErrConflict)
	case isForeignKeyViolation(err):
		return fmt.Errorf("user %d: %w", f.UserID, ErrNotFound)
	case err != nil:
		return err
	}
	f.ID, err = res.LastInsertId()
	return err
}

func (s *Store) GetFile(ctx context.Context, id int64) (FileUpload, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_uploads WHERE id=?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return FileUpload{}, ErrNotFound
	}
	return f, err
}

// FilesBy returns the files whose attr column equals value. attr must be one
// of the filterable columns.
func (s *Store) FilesBy(ctx context.Context, attr string, value any) ([]FileUpload, error) {
	if !fileAttributes[attr] {
		return nil, fmt.Errorf("unknown file attribute %q", attr)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM file_uploads WHERE `+attr+`=? ORDER BY id;`, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileUpload
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpdateFile applies upd to file id and returns the updated record.
func (s *Store) UpdateFile(ctx context.Context, id int64, upd FileUpdate) (FileUpload, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE file_uploads
SET subject=COALESCE(?, subject), content_path=COALESCE(?, content_path), summary_path=COALESCE(?, summary_path)
WHERE id=?;
`, upd.Subject, upd.ContentPath, upd.SummaryPath, id)
	if err != nil {
		return FileUpload{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return FileUpload{}, ErrNotFound
	}
	return s.GetFile(ctx, id)
}

// DeleteFile removes the record and its shares.
func (s *Store) DeleteFile(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM file_uploads WHERE id=?;`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// VisibleFiles lists the user's own uploads followed by files shared with them.
func (s *Store) VisibleFiles(ctx context.Context, userID int64) ([]VisibleFile, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+fileColumns+`, 0 FROM file_uploads WHERE user_id=?
UNION ALL
SELECT f.id, f.user_id, f.filename, f.mime_type, f.size, f.path, f.subject, f.content_path, f.summary_path, f.created_at, 1
FROM file_uploads f JOIN shared_files s ON s.file_id=f.id
WHERE s.user_id=? AND f.user_id<>?
ORDER BY 11, 1;
`, userID, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VisibleFile
	for rows.Next() {
		var v VisibleFile
		f := &v.FileUpload
		if err := rows.Scan(&f.ID, &f.UserID, &f.Filename, &f.MimeType, &f.Size, &f.Path,
			&f.Subject, &f.ContentPath, &f.SummaryPath, &f.CreatedAt, &v.Shared); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CanRead reports whether userID owns file or has it shared with them.
func (s *Store) CanRead(ctx context.Context, userID int64, f FileUpload) (bool, error) {
	if f.UserID == userID {
		return true, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shared_files WHERE file_id=? AND user_id=?;`, f.ID, userID).Scan(&n)
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(r rowScanner) (FileUpload, error) {
	var f FileUpload
	err := r.Scan(&f.ID, &f.UserID, &f.Filename, &f.MimeType, &f.Size, &f.Path,
		&f.Subject, &f.ContentPath, &f.SummaryPath, &f.CreatedAt)
	return f, err
}

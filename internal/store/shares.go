package store

import (
	"context"
	"fmt"
)

type SharedFile struct {
	ID     int64
	FileID int64
	UserID int64
}

// Share grants each user read access to each file. Existing grants are kept;
// the number of new rows is returned. Unknown files or users return
// ErrNotFound and nothing is written.
func (s *Store) Share(ctx context.Context, fileIDs, userIDs []int64) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	created := 0
	for _, fid := range fileIDs {
		for _, uid := range userIDs {
			res, err := tx.ExecContext(ctx, `
INSERT INTO shared_files(file_id, user_id) VALUES(?, ?)
ON CONFLICT(file_id, user_id) DO NOTHING;
`, fid, uid)
			if isForeignKeyViolation(err) {
				return 0, fmt.Errorf("share file %d with user %d: %w", fid, uid, ErrNotFound)
			}
			if err != nil {
				return 0, err
			}
			n, _ := res.RowsAffected()
			created += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// SharesOf lists the share rows of a file.
func (s *Store) SharesOf(ctx context.Context, fileID int64) ([]SharedFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, file_id, user_id FROM shared_files WHERE file_id=? ORDER BY id;`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SharedFile
	for rows.Next() {
		var sf SharedFile
		if err := rows.Scan(&sf.ID, &sf.FileID, &sf.UserID); err != nil {
			return nil, err
		}
		out = append(out, sf)
	}
	return out, rows.Err()
}

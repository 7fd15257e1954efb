package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type UserSetting struct {
	ID       int64
	UserID   int64
	ASRModel string
	LLM      string
}

// SettingsUpdate holds the fields to change; nil fields are left as is.
type SettingsUpdate struct {
	ASRModel *string
	LLM      *string
}

// RegisterUser creates the user and its settings row in one transaction.
// Duplicate emails return ErrConflict.
func (s *Store) RegisterUser(ctx context.Context, u *User, settings UserSetting) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res, err := tx.ExecContext(ctx, `
INSERT INTO users(name, email, password_hash, created_at) VALUES(?, ?, ?, ?);
`, u.Name, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", u.Email, ErrConflict)
		}
		return err
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO user_settings(user_id, asr_model, llm) VALUES(?, ?, ?);
`, u.ID, settings.ASRModel, settings.LLM); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) GetUser(ctx context.Context, id int64) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
SELECT id, name, email, password_hash, created_at FROM users WHERE id=?;
`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `
SELECT id, name, email, password_hash, created_at FROM users WHERE email=?;
`, email))
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

func (s *Store) GetSettings(ctx context.Context, id int64) (UserSetting, error) {
	return scanSettings(s.db.QueryRowContext(ctx, `
SELECT id, user_id, asr_model, llm FROM user_settings WHERE id=?;
`, id))
}

func (s *Store) GetSettingsByUser(ctx context.Context, userID int64) (UserSetting, error) {
	return scanSettings(s.db.QueryRowContext(ctx, `
SELECT id, user_id, asr_model, llm FROM user_settings WHERE user_id=?;
`, userID))
}

func scanSettings(row *sql.Row) (UserSetting, error) {
	var st UserSetting
	if err := row.Scan(&st.ID, &st.UserID, &st.ASRModel, &st.LLM); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserSetting{}, ErrNotFound
		}
		return UserSetting{}, err
	}
	return st, nil
}

// UpdateSettings applies upd to the settings row id and returns the result.
func (s *Store) UpdateSettings(ctx context.Context, id int64, upd SettingsUpdate) (UserSetting, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE user_settings SET asr_model=COALESCE(?, asr_model), llm=COALESCE(?, llm) WHERE id=?;
`, upd.ASRModel, upd.LLM, id)
	if err != nil {
		return UserSetting{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return UserSetting{}, ErrNotFound
	}
	return s.GetSettings(ctx, id)
}

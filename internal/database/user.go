package database

import (
	"context"
	"database/sql"
	"errors"
)

// GetUser returns nil without error when the user has never been seen.
func (s *sqliteDB) GetUser(ctx context.Context, userID int64) (*User, error) {
	user := &User{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, first_name, username, created_at, updated_at FROM users WHERE id = ?",
		userID,
	).Scan(&user.ID, &user.FirstName, &user.Username, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *sqliteDB) SaveUser(ctx context.Context, user User) error {
	_, err := s.ExecWithRetry(ctx, `
		INSERT INTO users (id, first_name, username)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			first_name = excluded.first_name,
			username = excluded.username,
			updated_at = CURRENT_TIMESTAMP
	`, user.ID, user.FirstName, user.Username)
	return err
}

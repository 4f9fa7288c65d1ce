package database

import (
	"context"
	"database/sql"
	"time"
)

type Database interface {
	GetDB() *sql.DB

	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error)
	// WithTx runs fn in a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error
	Close() error

	GetUser(ctx context.Context, userID int64) (*User, error)
	SaveUser(ctx context.Context, user User) error
}

type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u User) Equal(user User) bool {
	return u.ID == user.ID && u.FirstName == user.FirstName && u.Username == user.Username
}

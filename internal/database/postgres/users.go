package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// GetUserByUsername returns the user with the given name.
func (p *Pool) GetUserByUsername(ctx context.Context, username string) (*database.User, error) {
	var u database.User
	err := p.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, pin_hash FROM users WHERE username = $1", username,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.PINHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user. Duplicate usernames return database.ErrConflict.
func (p *Pool) CreateUser(ctx context.Context, user *database.User) (int64, error) {
	err := p.db.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash, pin_hash) VALUES ($1, $2, $3) RETURNING id",
		user.Username, user.PasswordHash, user.PINHash,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return 0, database.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return user.ID, nil
}

// UpdatePassword replaces the password hash.
func (p *Pool) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return p.execUserUpdate(ctx, "UPDATE users SET password_hash = $1 WHERE username = $2", username, passwordHash)
}

// UpdatePIN replaces the PIN hash.
func (p *Pool) UpdatePIN(ctx context.Context, username, pinHash string) error {
	return p.execUserUpdate(ctx, "UPDATE users SET pin_hash = $1 WHERE username = $2", username, pinHash)
}

func (p *Pool) execUserUpdate(ctx context.Context, query, username, value string) error {
	result, err := p.db.ExecContext(ctx, query, value, username)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

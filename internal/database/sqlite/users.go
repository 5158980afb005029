package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rehanbawakhan/vdetection/internal/database"
)

// GetUserByUsername returns the user with the given name.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*database.User, error) {
	var u database.User
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, pin_hash FROM users WHERE username = ?", username,
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
func (s *Store) CreateUser(ctx context.Context, user *database.User) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, pin_hash) VALUES (?, ?, ?)",
		user.Username, user.PasswordHash, user.PINHash,
	)
	if isUniqueViolation(err) {
		return 0, database.ErrConflict
	}
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting inserted user id: %w", err)
	}
	user.ID = id
	return id, nil
}

// UpdatePassword replaces the password hash.
func (s *Store) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return s.updateUserColumn(ctx, "password_hash", username, passwordHash)
}

// UpdatePIN replaces the PIN hash.
func (s *Store) UpdatePIN(ctx context.Context, username, pinHash string) error {
	return s.updateUserColumn(ctx, "pin_hash", username, pinHash)
}

// updateUserColumn is only called with the fixed column names above.
func (s *Store) updateUserColumn(ctx context.Context, column, username, value string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE users SET "+column+" = ? WHERE username = ?", value, username)
	if err != nil {
		return fmt.Errorf("update user %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrNotFound
	}
	return nil
}

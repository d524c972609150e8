package store

import (
	"database/sql"
	"log/slog"

	"github.com/pavelanni/quizzer/internal/model"
)

// CreateUser inserts a new user. CreatedAt is stored as given.
func (s *Store) CreateUser(u model.User) (int64, error) {
	id, err := s.insert(s.db,
		`INSERT INTO users (username, display_name, created_at) VALUES ($1, $2, $3)`,
		u.Username, u.DisplayName, u.CreatedAt.UTC(),
	)
	if err != nil {
		slog.Error("failed to create user", "username", u.Username, "error", err)
		return 0, err
	}
	slog.Info("created user", "id", id, "username", u.Username)
	return id, nil
}

// GetUserByUsername returns a user by exact username, or nil if missing.
func (s *Store) GetUserByUsername(username string) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, username, display_name, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID returns a user by ID, or nil if missing.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(
		`SELECT id, username, display_name, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.DisplayName, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

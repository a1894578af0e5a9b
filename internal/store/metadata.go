package store

import (
	"database/sql"
	"errors"
)

// KeyAuthToken holds the bearer token saved by `cotgame login`.
const KeyAuthToken = "auth_token"

// KeyUsername holds the name of the logged-in user.
const KeyUsername = "username"

// SetMetadata upserts a key-value pair in the metadata table.
func (s *Store) SetMetadata(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO metadata (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = ?`,
		key, value, value,
	)
	return err
}

// GetMetadata returns the value for a metadata key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// DeleteMetadata removes a key. Missing keys are not an error.
func (s *Store) DeleteMetadata(key string) error {
	_, err := s.db.Exec(`DELETE FROM metadata WHERE key = ?`, key)
	return err
}

// SaveLogin stores the token and username from a successful login.
func (s *Store) SaveLogin(token, username string) error {
	if err := s.SetMetadata(KeyAuthToken, token); err != nil {
		return err
	}
	return s.SetMetadata(KeyUsername, username)
}

// ClearLogin forgets the saved token and username.
func (s *Store) ClearLogin() error {
	if err := s.DeleteMetadata(KeyAuthToken); err != nil {
		return err
	}
	return s.DeleteMetadata(KeyUsername)
}

package store

import (
	"database/sql"
	"time"
)

// SetImportedFileHash records the sha256 of an imported quiz file.
func (s *Store) SetImportedFileHash(path, hash string) error {
	_, err := s.db.Exec(
		`INSERT INTO imported_files (path, sha256, imported_at) VALUES ($1, $2, $3)
		 ON CONFLICT(path) DO UPDATE SET sha256 = EXCLUDED.sha256, imported_at = EXCLUDED.imported_at`,
		path, hash, time.Now().UTC(),
	)
	return err
}

// GetImportedFileHash returns the recorded hash for path.
// Returns empty string and nil error if the file was never imported.
func (s *Store) GetImportedFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow(`SELECT sha256 FROM imported_files WHERE path = $1`, path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

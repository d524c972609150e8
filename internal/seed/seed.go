// Package seed loads quiz sets into the store, either from the bundled demo
// data or from JSON files on disk.
package seed

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/pavelanni/quizzer/internal/model"
)

//go:embed quizsets.json
var demoData []byte

// ErrInvalidQuizSet wraps every validation failure reported by Validate.
var ErrInvalidQuizSet = errors.New("invalid quiz set")

// Store is what importing needs from the record store.
type Store interface {
	QuizSetCount() (int, error)
	GetQuizSetBySlug(slug string) (*model.QuizSet, error)
	CreateQuizSet(set model.QuizSet) (int64, error)
	GetImportedFileHash(path string) (string, error)
	SetImportedFileHash(path, hash string) error
}

// Demo returns the bundled sample quiz sets.
func Demo() ([]model.QuizSetImport, error) {
	return Parse(demoData)
}

// Parse decodes a JSON array of quiz sets and validates all of them.
func Parse(data []byte) ([]model.QuizSetImport, error) {
	var sets []model.QuizSetImport
	if err := json.Unmarshal(data, &sets); err != nil {
		return nil, fmt.Errorf("decode quiz sets: %w", err)
	}
	if err := Validate(sets); err != nil {
		return nil, err
	}
	return sets, nil
}

// Validate checks slugs, titles and the single-correct-option rule of every
// question. It reports the first problem found.
func Validate(sets []model.QuizSetImport) error {
	slugs := make(map[string]bool)
	for i, s := range sets {
		if strings.TrimSpace(s.Slug) == "" {
			return fmt.Errorf("%w: set #%d has no slug", ErrInvalidQuizSet, i+1)
		}
		if slugs[s.Slug] {
			return fmt.Errorf("%w: duplicate slug %q", ErrInvalidQuizSet, s.Slug)
		}
		slugs[s.Slug] = true
		if strings.TrimSpace(s.Title) == "" {
			return fmt.Errorf("%w: set %q has no title", ErrInvalidQuizSet, s.Slug)
		}
		for j, qi := range s.Questions {
			if strings.TrimSpace(qi.Text) == "" {
				return fmt.Errorf("%w: set %q question #%d has no text", ErrInvalidQuizSet, s.Slug, j+1)
			}
			if err := qi.Question().Validate(); err != nil {
				return fmt.Errorf("%w: set %q question #%d: %w", ErrInvalidQuizSet, s.Slug, j+1, err)
			}
		}
	}
	return nil
}

// Import inserts the sets whose slug is not in the store yet and returns how
// many were inserted. Existing slugs are skipped with a warning.
func Import(st Store, sets []model.QuizSetImport) (int, error) {
	if err := Validate(sets); err != nil {
		return 0, err
	}
	imported := 0
	for _, si := range sets {
		existing, err := st.GetQuizSetBySlug(si.Slug)
		if err != nil {
			return imported, fmt.Errorf("look up %q: %w", si.Slug, err)
		}
		if existing != nil {
			slog.Warn("quiz set already exists, skipping", "slug", si.Slug)
			continue
		}

		set := model.QuizSet{Slug: si.Slug, Title: si.Title, Description: si.Description}
		for _, qi := range si.Questions {
			set.Questions = append(set.Questions, qi.Question())
		}
		id, err := st.CreateQuizSet(set)
		if err != nil {
			return imported, fmt.Errorf("insert %q: %w", si.Slug, err)
		}
		slog.Info("imported quiz set", "id", id, "slug", si.Slug, "questions", len(set.Questions))
		imported++
	}
	return imported, nil
}

// EnsureSeeded loads the demo sets when the store has no quiz sets at all.
func EnsureSeeded(st Store) error {
	count, err := st.QuizSetCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	sets, err := Demo()
	if err != nil {
		return err
	}
	n, err := Import(st, sets)
	if err != nil {
		return err
	}
	slog.Info("seeded demo quiz sets", "count", n)
	return nil
}

// ImportFile imports one JSON file. A file is imported at most once: its
// sha256 is recorded, and later runs skip it whether or not it has changed.
// It returns the number of sets inserted.
func ImportFile(st Store, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", path, err)
	}

	hash := sha256sum(data)
	storedHash, err := st.GetImportedFileHash(path)
	if err != nil {
		return 0, fmt.Errorf("check import status for %s: %w", path, err)
	}
	if storedHash == hash {
		slog.Info("quiz file unchanged, skipping", "path", path)
		return 0, nil
	}
	if storedHash != "" {
		slog.Warn("quiz file changed since last import, skipping to keep existing attempts consistent",
			"path", path)
		return 0, nil
	}

	sets, err := Parse(data)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", path, err)
	}
	n, err := Import(st, sets)
	if err != nil {
		return n, fmt.Errorf("import %s: %w", path, err)
	}
	if err := st.SetImportedFileHash(path, hash); err != nil {
		return n, fmt.Errorf("record import for %s: %w", path, err)
	}
	slog.Info("imported quiz file", "path", path, "sets", n)
	return n, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

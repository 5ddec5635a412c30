// Package enroll registers family members from a directory of
// reference photos. The filename stem is the person's name.
package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/your-org/homewatch/internal/models"
)

// FaceEmbedder extracts the embedding of the largest face in an image.
// Implemented by the vision scanner.
type FaceEmbedder interface {
	EmbedLargestFace(imageData []byte) ([]float32, error)
}

// Store is the registry surface enrollment needs.
type Store interface {
	UpsertOwner(ctx context.Context, name string, seen time.Time) (*models.Person, error)
	AddPersonFace(ctx context.Context, personID int64, embedding []float32, sourceImage string) error
}

// Result reports what one enrollment run did.
type Result struct {
	Persons int
	Faces   int
	Skipped int
}

// Enroller walks an enrollment directory and records one face vector
// per usable photo.
type Enroller struct {
	store    Store
	embedder FaceEmbedder
}

func NewEnroller(store Store, embedder FaceEmbedder) *Enroller {
	return &Enroller{store: store, embedder: embedder}
}

// Enroll reads every image in dir, upserts the named person and adds
// the face vector. A photo that fails to decode or contains no face
// is logged and skipped; the run continues. Re-running over the same
// directory adds face rows but never duplicates persons.
func (e *Enroller) Enroll(ctx context.Context, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read enroll dir: %w", err)
	}

	res := &Result{}
	seen := map[string]bool{}
	for _, entry := range entries {
		if entry.IsDir() || !isImage(entry.Name()) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		name := personName(entry.Name())
		path := filepath.Join(dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("skip unreadable photo", "path", path, "error", err)
			res.Skipped++
			continue
		}

		embedding, err := e.embedder.EmbedLargestFace(data)
		if err != nil {
			slog.Warn("skip photo without usable face", "path", path, "error", err)
			res.Skipped++
			continue
		}

		person, err := e.store.UpsertOwner(ctx, name, time.Now())
		if err != nil {
			return res, fmt.Errorf("upsert person %s: %w", name, err)
		}
		if err := e.store.AddPersonFace(ctx, person.ID, embedding, entry.Name()); err != nil {
			return res, fmt.Errorf("add face for %s: %w", name, err)
		}

		if !seen[name] {
			seen[name] = true
			res.Persons++
		}
		res.Faces++
		slog.Info("enrolled face", "person", name, "photo", entry.Name())
	}
	return res, nil
}

func isImage(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

// personName is the filename stem; it is the stable enrollment key.
func personName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}

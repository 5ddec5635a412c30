package enroll

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/models"
)

type fakeEmbedder struct {
	failOn map[string]bool
	calls  int
}

func (f *fakeEmbedder) EmbedLargestFace(imageData []byte) ([]float32, error) {
	f.calls++
	if f.failOn[string(imageData)] {
		return nil, errors.New("no face detected")
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeRegistry struct {
	persons map[string]*models.Person
	faces   map[string]int
	nextID  int64
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{persons: map[string]*models.Person{}, faces: map[string]int{}}
}

func (f *fakeRegistry) UpsertOwner(ctx context.Context, name string, seen time.Time) (*models.Person, error) {
	if p, ok := f.persons[name]; ok {
		return p, nil
	}
	f.nextID++
	p := &models.Person{ID: f.nextID, Name: name, Role: models.RoleOwner}
	f.persons[name] = p
	return p, nil
}

func (f *fakeRegistry) AddPersonFace(ctx context.Context, personID int64, embedding []float32, sourceImage string) error {
	f.faces[fmt.Sprintf("%d/%s", personID, sourceImage)]++
	return nil
}

func writePhotos(t *testing.T, names map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestEnrollTwoOwners(t *testing.T) {
	dir := writePhotos(t, map[string]string{"1.jpeg": "a", "2.jpeg": "b"})
	store := newFakeRegistry()
	e := NewEnroller(store, &fakeEmbedder{})

	res, err := e.Enroll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Persons)
	assert.Equal(t, 2, res.Faces)
	assert.Len(t, store.persons, 2)
	for _, p := range store.persons {
		assert.Equal(t, models.RoleOwner, p.Role)
	}
}

func TestEnrollSkipsPhotosWithoutFaces(t *testing.T) {
	dir := writePhotos(t, map[string]string{"dad.jpg": "ok", "blurry.jpg": "bad"})
	store := newFakeRegistry()
	e := NewEnroller(store, &fakeEmbedder{failOn: map[string]bool{"bad": true}})

	res, err := e.Enroll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Persons)
	assert.Equal(t, 1, res.Skipped)
	_, enrolled := store.persons["dad"]
	assert.True(t, enrolled)
	_, skipped := store.persons["blurry"]
	assert.False(t, skipped)
}

func TestEnrollIgnoresNonImages(t *testing.T) {
	dir := writePhotos(t, map[string]string{"mom.png": "a", "notes.txt": "x", "clip.mp4": "y"})
	store := newFakeRegistry()
	emb := &fakeEmbedder{}
	e := NewEnroller(store, emb)

	res, err := e.Enroll(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Persons)
	assert.Equal(t, 1, emb.calls)
}

func TestEnrollRerunKeepsPersonCount(t *testing.T) {
	dir := writePhotos(t, map[string]string{"1.jpeg": "a", "2.jpeg": "b"})
	store := newFakeRegistry()
	e := NewEnroller(store, &fakeEmbedder{})

	_, err := e.Enroll(context.Background(), dir)
	require.NoError(t, err)
	_, err = e.Enroll(context.Background(), dir)
	require.NoError(t, err)
	assert.Len(t, store.persons, 2)
}

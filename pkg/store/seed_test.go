package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedYAML = `
categories:
  - name: Books
    slug: books
  - name: Films
    slug: films
genres:
  - name: Drama
    slug: drama
`

func TestSeedFromFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seedYAML), 0o644))

	require.NoError(t, s.SeedFromFile(ctx, path))

	categories, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)

	genres, err := s.ListGenres(ctx)
	require.NoError(t, err)
	assert.Len(t, genres, 1)

	// reseeding is a no-op for existing slugs
	require.NoError(t, s.SeedFromFile(ctx, path))

	categories, err = s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, categories, 2)
}

func TestSeedFromFileMissing(t *testing.T) {
	s := newTestStore(t)
	assert.Error(t, s.SeedFromFile(context.Background(), "/nonexistent/seed.yaml"))
}

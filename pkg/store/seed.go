package store

import (
	"context"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedData is the shape of the optional catalog seed file.
type SeedData struct {
	Categories []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"categories"`
	Genres []struct {
		Name string `yaml:"name"`
		Slug string `yaml:"slug"`
	} `yaml:"genres"`
}

// SeedFromFile loads catalog fixtures from a YAML file and inserts the
// ones that are not already present. Existing slugs are left untouched,
// so the seed is safe to run on every startup.
func (s *Store) SeedFromFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}

	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	return s.Seed(ctx, &data)
}

// Seed inserts the given catalog fixtures, skipping taken slugs.
func (s *Store) Seed(ctx context.Context, data *SeedData) error {
	var created int
	for _, c := range data.Categories {
		err := s.CreateCategory(ctx, &Category{Name: c.Name, Slug: c.Slug})
		if errors.Is(err, ErrSlugExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed category %q: %w", c.Slug, err)
		}
		created++
	}
	for _, g := range data.Genres {
		err := s.CreateGenre(ctx, &Genre{Name: g.Name, Slug: g.Slug})
		if errors.Is(err, ErrSlugExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to seed genre %q: %w", g.Slug, err)
		}
		created++
	}

	if created > 0 {
		s.logger.WithField("created", created).Info("seeded catalog fixtures")
	}
	return nil
}

// Package storage holds what the memory and postgres stores share.
package storage

import (
	"fmt"
	"os"

	"booking-service/internal/models"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Providers []*models.Provider `yaml:"providers"`
}

// LoadSeed reads the provider directory seed file.
func LoadSeed(path string) ([]*models.Provider, error) {
	const op = "storage.LoadSeed"

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	seen := make(map[string]struct{}, len(seed.Providers))
	for _, p := range seed.Providers {
		if p.ID == "" {
			return nil, fmt.Errorf("%s: provider without id", op)
		}
		if !p.Kind.Valid() {
			return nil, fmt.Errorf("%s: provider %s: unknown kind %q", op, p.ID, p.Kind)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate provider %s", op, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	return seed.Providers, nil
}

package cohort

import (
	"context"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// File is the YAML roster file layout:
//
//	rosters:
//	  CS101: [S001, S002]
//	  BSIT-1: [S001]
type File struct {
	Rosters map[string][]string `yaml:"rosters"`
}

// Static serves rosters held in memory.
type Static struct {
	rosters map[string][]string
}

// NewStatic creates a resolver over fixed rosters.
func NewStatic(rosters map[string][]string) *Static {
	normalized := make(map[string][]string, len(rosters))
	for key, students := range rosters {
		normalized[key] = normalize(students)
	}
	return &Static{rosters: normalized}
}

// LoadFile reads a YAML roster file.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML roster data.
func Parse(data []byte) (*Static, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	return NewStatic(file.Rosters), nil
}

// Roster returns a copy of the roster for key.
func (s *Static) Roster(_ context.Context, key string) ([]string, error) {
	students, ok := s.rosters[key]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(students), nil
}

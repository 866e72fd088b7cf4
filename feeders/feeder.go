// Package feeders fills configuration structs from YAML files, TOML files
// and environment variables.
package feeders

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Feeder fills target, a pointer to a struct, from one source. Fields the
// source does not mention keep their value.
type Feeder interface {
	Feed(target any) error
}

// ForFile picks a feeder by file extension.
func ForFile(path string) (Feeder, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return NewYamlFeeder(path), nil
	case ".toml":
		return NewTomlFeeder(path), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Feed applies feeders in order, so later sources override earlier ones.
func Feed(target any, feeders ...Feeder) error {
	for _, f := range feeders {
		if err := f.Feed(target); err != nil {
			return fmt.Errorf("feed %T: %w", f, err)
		}
	}
	return nil
}

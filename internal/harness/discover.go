package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DiscoverScenarios returns the YAML scenario files under dir, sorted by
// path. A path to a single file is returned as is.
func DiscoverScenarios(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scenario path: %w", err)
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning scenarios: %w", err)
	}

	slices.Sort(paths)
	return paths, nil
}

package utils

import (
	"os"
	"path/filepath"
)

// PrepareDestination makes path absolute and creates every missing ancestor
// directory. When isFile is false the path itself is created as a directory
// too. Filesystem errors are returned as-is.
func PrepareDestination(path string, isFile bool) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	dir := abs
	if isFile {
		dir = filepath.Dir(abs)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	return abs, nil
}

// Confine resolves name below root, so that ".." components cannot climb out
// of it.
func Confine(root, name string) string {
	return filepath.Join(root, filepath.Clean(string(filepath.Separator)+name))
}

// Package apputil provides small filesystem helpers shared by config
// loading, identity persistence, and the dedup store's data directory.
package apputil

import (
	"os"
	"path/filepath"

	"novarelay.dev/internal/chk"
)

// EnsureDir creates the parent directory of fileName if it doesn't already
// exist.
func EnsureDir(fileName string) (err error) {
	dirName := filepath.Dir(fileName)
	if _, err = os.Stat(dirName); chk.E(err) {
		return os.MkdirAll(dirName, os.ModePerm)
	}
	return
}

// FileExists reports whether the named file or directory exists.
func FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}

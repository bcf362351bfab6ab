package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// WriteFileAtomic writes data next to path and renames it into place so a
// crash never leaves a truncated file. Missing parent directories are created.
func WriteFileAtomic(path string, data []byte) error {
	if strings.Contains(filepath.Clean(path), string(os.PathSeparator)) {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

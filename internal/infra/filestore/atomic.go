// Package filestore persists pipeline artifacts and loads task files.
package filestore

import (
	"os"
	"path/filepath"
)

// EnsureDir creates the directory and all parents if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o755)
}

// AtomicWrite writes data to filePath via a temporary file in the same
// directory and a rename, so readers never observe a partial file.
func AtomicWrite(filePath string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, filePath); err != nil {
		cleanup()
		return err
	}
	return nil
}

// ResolvePath expands a leading ~ and environment variables. An empty
// configured value falls back to defaultPath.
func ResolvePath(configured, defaultPath string) string {
	path := configured
	if path == "" {
		path = defaultPath
	}
	if path == "" {
		return path
	}

	if path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			switch {
			case len(path) == 1:
				path = home
			case path[1] == '/':
				path = filepath.Join(home, path[2:])
			}
		}
	}
	return os.ExpandEnv(path)
}

package network

import (
	"fmt"
	"os"
)

// WriteKeyFile materializes an in-memory private key to a file only the
// current user can read, under dir (or the default temp dir when dir is
// empty). The returned cleanup removes the file and must be called on
// every exit path.
func WriteKeyFile(dir, key string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp(dir, "hostscout-key-*.pem")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create key file: %w", err)
	}
	path = f.Name()
	cleanup = func() { os.Remove(path) }

	if err := f.Chmod(0o600); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to restrict key file: %w", err)
	}
	if _, err := f.WriteString(key); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to close key file: %w", err)
	}
	return path, cleanup, nil
}

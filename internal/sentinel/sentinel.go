// Package sentinel manages the initialization-failure marker file that gates
// all request handling. The marker survives within a process lifetime only as
// an external file; a restart with a successful boot clears it.
package sentinel

import (
	"fmt"
	"os"
)

const filePermissions = 0o600

// File is an initialization-failure marker at a fixed path.
type File struct {
	path string
}

// New returns a sentinel over the given path.
func New(path string) *File {
	return &File{path: path}
}

// Clear removes a stale marker left by a previous boot. A missing marker is
// not an error.
func (f *File) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear init sentinel %s: %w", f.path, err)
	}

	return nil
}

// Write records an initialization failure with its full diagnostic text.
func (f *File) Write(diagnostic string) error {
	err := os.WriteFile(f.path, []byte(diagnostic), filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write init sentinel %s: %w", f.path, err)
	}

	return nil
}

// Check reports whether an initialization failure is recorded and returns its
// diagnostic text. An unreadable marker still gates requests.
func (f *File) Check() (string, bool) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false
		}

		return fmt.Sprintf("init sentinel unreadable: %v", err), true
	}

	return string(data), true
}

// SPDX-License-Identifier: MIT
/*
Package library resolves and loads the files referenced by file-backed
features: declipping filter descriptions, live programs and impulse
responses. Relative paths are resolved against the library directory.
*/
package library

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned for empty paths, missing files and
	// directories. Callers treat it as a request to disable the feature.
	ErrNotFound = errors.New("library file not found")

	// ErrCorrupt is returned when an impulse response cannot be decoded.
	ErrCorrupt = errors.New("impulse response corrupted")

	// ErrNoFrames is returned when an impulse response decodes to nothing.
	ErrNoFrames = errors.New("impulse response has no frames")
)

// Text is a loaded text file.
type Text struct {
	Name    string
	Content string
}

// Library is a directory of user supplied files.
type Library struct {
	dir string
}

// New returns a Library rooted at dir. An empty dir resolves relative paths
// against the working directory.
func New(dir string) *Library {
	return &Library{dir: dir}
}

// Dir returns the library directory.
func (l *Library) Dir() string { return l.dir }

// Resolve turns a stored path into a filesystem path.
func (l *Library) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || l.dir == "" {
		return path
	}
	return filepath.Join(l.dir, path)
}

// stat returns the resolved path of a regular file, or ErrNotFound.
func (l *Library) stat(path string) (string, error) {
	full := l.Resolve(path)
	if full == "" {
		return "", ErrNotFound
	}
	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", full, ErrNotFound)
		}
		return "", fmt.Errorf("failed to stat %s: %w", full, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory: %w", full, ErrNotFound)
	}
	return full, nil
}

// ReadText loads a text file. A missing path yields ErrNotFound; any other
// failure is a hard error.
func (l *Library) ReadText(path string) (Text, error) {
	full, err := l.stat(path)
	if err != nil {
		return Text{}, err
	}
	b, err := os.ReadFile(full)
	if err != nil {
		return Text{}, fmt.Errorf("failed to read %s: %w", full, err)
	}
	return Text{Name: filepath.Base(full), Content: string(b)}, nil
}

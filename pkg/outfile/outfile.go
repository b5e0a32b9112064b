// Package outfile persists the most recent latency sample to a single-value
// file that external monitors can poll.
package outfile

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"pushstream-latency/pkg/latency"

	"github.com/spf13/afero"
)

// Store overwrites one file with the latest latency value. Readers never see
// a partially written file: each write lands in a temporary sibling that is
// renamed over the target.
type Store struct {
	fs   afero.Fs
	path string
}

// New returns a Store writing to path on fs.
func New(fs afero.Fs, path string) *Store {
	return &Store{fs: fs, path: path}
}

// NewOS returns a Store on the host filesystem.
func NewOS(path string) *Store {
	return New(afero.NewOsFs(), path)
}

func (s *Store) Path() string { return s.path }

// Write replaces the file contents with v followed by a newline.
func (s *Store) Write(v float64) error {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}

	tmp, err := afero.TempFile(s.fs, dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(latency.FormatLatency(v) + "\n"); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := s.fs.Chmod(tmpName, 0o644); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("rename %s to %s: %w", tmpName, s.path, err)
	}
	return nil
}

// Read returns the value last written. It returns an error wrapping
// os.ErrNotExist when nothing has been written yet.
func (s *Store) Read() (float64, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return v, nil
}

// Exists reports whether the file has been written.
func (s *Store) Exists() bool {
	_, err := s.fs.Stat(s.path)
	return err == nil
}

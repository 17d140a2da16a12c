package markstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/carlosnayan/prisma-testdb/naming"
)

const markExt = ".mark"

// File keeps one sentinel file per database in Dir. The file holds the time
// the mark was set.
type File struct {
	Dir string
}

func NewFile(dir string) *File {
	return &File{Dir: dir}
}

// Path returns the sentinel path for name.
func (f *File) Path(name string) string {
	return filepath.Join(f.Dir, name+markExt)
}

func (f *File) Mark(_ context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("error creating mark directory: %w", err)
	}
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(f.Path(name), []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("error writing mark for %s: %w", name, err)
	}
	return nil
}

func (f *File) Unmark(_ context.Context, name string) error {
	if err := naming.Validate(name); err != nil {
		return err
	}
	err := os.Remove(f.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error removing mark for %s: %w", name, err)
	}
	return nil
}

func (f *File) Exists(_ context.Context, name string) (bool, error) {
	if err := naming.Validate(name); err != nil {
		return false, err
	}
	_, err := os.Stat(f.Path(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("error checking mark for %s: %w", name, err)
	}
}

// MarkedAt returns when name was marked, or the zero time if it is not.
func (f *File) MarkedAt(name string) (time.Time, error) {
	data, err := os.ReadFile(f.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, string(trimNewline(data)))
}

// Clear removes every mark in the directory and returns how many were removed.
func (f *File) Clear() (int, error) {
	matches, err := filepath.Glob(filepath.Join(f.Dir, "*"+markExt))
	if err != nil {
		return 0, err
	}
	return removeMarks(matches)
}

// removeMarks deletes paths and counts only the files it actually removed.
func removeMarks(paths []string) (int, error) {
	removed := 0
	for _, m := range paths {
		err := os.Remove(m)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

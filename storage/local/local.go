package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/davidvella/xsort/codec"
	"github.com/hashicorp/go-multierror"
)

// Storage keeps the chunk files of one sort run in a private directory.
// Names are flat; any directory component is stripped.
type Storage struct {
	dir   string
	codec codec.Codec
}

// NewLocalStorage stores files in dir, encoding them with c. A nil codec
// stores files uncompressed.
func NewLocalStorage(dir string, c codec.Codec) *Storage {
	if c == nil {
		c = codec.None
	}
	return &Storage{
		dir:   dir,
		codec: c,
	}
}

func (s *Storage) Dir() string {
	return s.dir
}

// Path returns the location of name on disk.
func (s *Storage) Path(name string) string {
	return filepath.Join(s.dir, filepath.Base(name))
}

// Create creates name for writing. It fails if the file already exists so
// two writers can never share a file.
func (s *Storage) Create(_ context.Context, name string) (io.WriteCloser, error) {
	file, err := os.OpenFile(s.Path(name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", name, err)
	}
	w, err := s.codec.NewWriter(file)
	if err != nil {
		file.Close()
		os.Remove(file.Name())
		return nil, err
	}
	return &encodedFile{w: w, f: file}, nil
}

// Open opens name for reading.
func (s *Storage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	file, err := os.Open(s.Path(name))
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", name, err)
	}
	r, err := s.codec.NewReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &decodedFile{r: r, f: file}, nil
}

// Delete removes name. Removing a file that no longer exists is not an error.
func (s *Storage) Delete(_ context.Context, name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete file %s: %w", name, err)
	}
	return nil
}

// List returns the names of all files currently stored, sorted.
func (s *Storage) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Clear removes the storage directory and everything in it.
func (s *Storage) Clear() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", s.dir, err)
	}
	return nil
}

type encodedFile struct {
	w io.WriteCloser
	f *os.File
}

func (e *encodedFile) Write(p []byte) (int, error) {
	return e.w.Write(p)
}

func (e *encodedFile) Close() error {
	return multierror.Append(nil, e.w.Close(), e.f.Close()).ErrorOrNil()
}

type decodedFile struct {
	r io.ReadCloser
	f *os.File
}

func (d *decodedFile) Read(p []byte) (int, error) {
	return d.r.Read(p)
}

func (d *decodedFile) Close() error {
	return multierror.Append(nil, d.r.Close(), d.f.Close()).ErrorOrNil()
}

package upload

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Sink stores accepted uploads and returns the key they are stored under.
type Sink interface {
	Store(ctx context.Context, f *File) (key string, err error)
}

// AferoSink writes files into a directory of an afero filesystem.
type AferoSink struct {
	fs  afero.Fs
	dir string
}

// NewAferoSink returns a sink writing into dir, creating it if needed.
func NewAferoSink(fs afero.Fs, dir string) (*AferoSink, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory %s: %w", dir, err)
	}
	return &AferoSink{fs: fs, dir: dir}, nil
}

// Store writes f under a fresh UUID key keeping the original extension.
func (s *AferoSink) Store(ctx context.Context, f *File) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := uuid.NewString() + strings.ToLower(path.Ext(filepath.ToSlash(f.Name)))
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, key), f.Data, 0o644); err != nil {
		return "", fmt.Errorf("storing %s: %w", f.Name, err)
	}
	return key, nil
}

// Open returns the stored file for key.
func (s *AferoSink) Open(key string) (io.ReadCloser, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return nil, fmt.Errorf("invalid storage key %q", key)
	}
	return s.fs.Open(filepath.Join(s.dir, key))
}

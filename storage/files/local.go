package files

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core/material"
)

// Local stores material files on the local filesystem under a root directory.
// Stored names are prefixed with a UUID so uploads never collide.
type Local struct {
	root        string
	maxFileSize int64
}

var _ material.FileStore = (*Local)(nil)

func NewLocal(root string, maxFileSize int64) (*Local, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating upload dir %s", root)
	}
	return &Local{root: root, maxFileSize: maxFileSize}, nil
}

func (s *Local) Save(ctx context.Context, name string, src io.Reader) (string, int64, error) {
	name = uuid.New().String() + "_" + sanitize(name)
	dst, err := os.OpenFile(filepath.Join(s.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, errors.Wrap(err, "creating file")
	}
	defer dst.Close()

	size, err := io.Copy(dst, io.LimitReader(src, s.maxFileSize+1))
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", 0, errors.Wrap(err, "writing file")
	}
	if size > s.maxFileSize {
		_ = os.Remove(dst.Name())
		return "", 0, errors.Errorf("file exceeds the %d byte limit", s.maxFileSize)
	}
	return name, size, nil
}

func (s *Local) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.root, filepath.Base(path)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, material.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

func (s *Local) Remove(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(s.root, filepath.Base(path)))
	if os.IsNotExist(err) {
		return nil
	}
	return errors.Wrap(err, "removing file")
}

// sanitize strips path separators and whitespace from an upload name.
func sanitize(name string) string {
	name = filepath.Base(name)
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ', '\t':
			return '_'
		}
		return r
	}, name)
}

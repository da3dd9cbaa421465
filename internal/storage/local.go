package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// LocalScratch stages uploads as temp files in Dir.
type LocalScratch struct {
	Dir string
}

func NewLocalScratch(dir string) (*LocalScratch, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "careerpath-uploads")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalScratch{Dir: dir}, nil
}

func (s *LocalScratch) Put(ctx context.Context, name string, r io.Reader) (Object, error) {
	f, err := os.CreateTemp(s.Dir, "upload-*-"+safeName(name))
	if err != nil {
		return Object{}, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	obj := Object{Name: f.Name(), Size: n}
	if err != nil {
		_ = os.Remove(f.Name())
		return Object{}, err
	}
	return obj, nil
}

func (s *LocalScratch) Read(ctx context.Context, obj Object) ([]byte, error) {
	return os.ReadFile(obj.Name)
}

func (s *LocalScratch) Delete(ctx context.Context, obj Object) error {
	if err := os.Remove(obj.Name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func safeName(name string) string {
	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "_" {
		return "document"
	}
	if len(name) > 64 {
		name = name[len(name)-64:]
	}
	return name
}

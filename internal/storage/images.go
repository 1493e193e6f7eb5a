// Package storage keeps provider profile images on local disk.  Only the
// generated file name is persisted in provider_profiles.image.
package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^\w-]`)

// Images stores blobs under Dir.
type Images struct {
	Dir string
}

// NewImages ensures dir exists and returns a store rooted there.
func NewImages(dir string) (*Images, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create images dir: %w", err)
	}
	return &Images{Dir: dir}, nil
}

// Save writes r under a fresh name derived from original (sanitized base
// name, random suffix, original extension) and returns the stored name.
func (s *Images) Save(original string, r io.Reader) (string, error) {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	base = unsafeChars.ReplaceAllString(strings.Join(strings.Fields(base), "_"), "")
	if base == "" {
		base = "image"
	}
	name := base + "_" + uuid.NewString() + strings.ToLower(ext)

	f, err := os.OpenFile(filepath.Join(s.Dir, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create image: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close image: %w", err)
	}
	return name, nil
}

// Base64 returns the stored image encoded for JSON responses.  A missing
// file yields "" and no error, matching rows whose file was cleaned up.
func (s *Images) Base64(name string) (string, error) {
	path, err := s.path(name)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// Release deletes the stored image.  Releasing a missing file is not an
// error.
func (s *Images) Release(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// path resolves name inside Dir, refusing anything that escapes it.
func (s *Images) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid image name %q", name)
	}
	return filepath.Join(s.Dir, name), nil
}

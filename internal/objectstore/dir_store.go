package objectstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const metaSuffix = ".meta.json"

// DirStore mirrors objects into a local directory, for example a mounted
// bucket or a static web root. Headers go into a sidecar JSON file.
type DirStore struct {
	root string
}

type dirMeta struct {
	ContentType  string `json:"contentType,omitempty"`
	CacheControl string `json:"cacheControl,omitempty"`
}

// NewDirStore creates root if needed.
func NewDirStore(root string) (*DirStore, error) {
	if root == "" {
		return nil, errors.New("directory cannot be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &DirStore{root: root}, nil
}

func (d *DirStore) path(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(d.root, clean), nil
}

// Put writes the object and its headers, each through a temp file and a
// rename.
func (d *DirStore) Put(_ context.Context, key string, data []byte, contentType, cacheControl string) error {
	path, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", key, err)
	}

	meta, err := json.Marshal(dirMeta{ContentType: contentType, CacheControl: cacheControl})
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := writeFileAtomic(path+metaSuffix, meta); err != nil {
		return fmt.Errorf("failed to write headers of %s: %w", key, err)
	}
	return nil
}

// Get reads an object and its sidecar headers.
func (d *DirStore) Get(_ context.Context, key string) (*Object, error) {
	path, err := d.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	obj := &Object{Key: key, Data: data}
	if raw, err := os.ReadFile(path + metaSuffix); err == nil {
		var meta dirMeta
		if json.Unmarshal(raw, &meta) == nil {
			obj.ContentType, obj.CacheControl = meta.ContentType, meta.CacheControl
		}
	}
	return obj, nil
}

// Close is a no-op.
func (d *DirStore) Close() error {
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tempPath := file.Name()

	_, err = file.Write(data)
	if err == nil {
		err = file.Sync()
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, path)
}

package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalProvider stores objects as plain files under a root directory and
// serves them back under a URL prefix.
type LocalProvider struct {
	root      string
	urlPrefix string
}

// NewLocalProvider creates a filesystem-backed provider rooted at root.
// Objects stored under key become reachable at urlPrefix/key.
func NewLocalProvider(root, urlPrefix string) (*LocalProvider, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalProvider{
		root:      root,
		urlPrefix: strings.TrimSuffix(urlPrefix, "/"),
	}, nil
}

// Put writes data to a file under the provider root, creating intermediate
// directories as needed. The write goes through a temp file so a crash never
// leaves a partial object at the final key.
func (p *LocalProvider) Put(_ context.Context, key string, reader io.Reader) error {
	target, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".put-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp object: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("finalize object: %w", err)
	}
	return nil
}

// Open returns a reader for the file at key.
func (p *LocalProvider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	target, err := p.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

// Delete removes the file at key; a missing file is not an error.
func (p *LocalProvider) Delete(_ context.Context, key string) error {
	target, err := p.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// AccessPath returns the URL path where the object is served.
func (p *LocalProvider) AccessPath(key string) string {
	return p.urlPrefix + "/" + strings.TrimPrefix(key, "/")
}

// Root returns the provider's base directory, for static file serving.
func (p *LocalProvider) Root() string {
	return p.root
}

// resolve maps a storage key to a path under root. Any ".." segment in the
// raw key is rejected before cleaning; cleaning first would silently re-anchor
// a traversal key instead of refusing it.
func (p *LocalProvider) resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("invalid storage key %q", key)
		}
	}
	clean := path.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(p.root, filepath.FromSlash(clean)), nil
}

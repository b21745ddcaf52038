// Package storage writes edited assets to local disk for the CLI.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nanoedit/internal/domain"
)

// FileStore writes assets under one root directory.
type FileStore struct {
	basePath string
}

// NewFileStore creates basePath if needed.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// WriteAsset decodes asset and stores it as name plus an extension taken
// from the asset format. It returns the path written.
func (s *FileStore) WriteAsset(ctx context.Context, name string, asset domain.InlineAsset) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := sanitizeKey(name)
	if err != nil {
		return "", err
	}
	if filepath.Ext(key) == "" {
		key += "." + extension(asset)
	}
	raw, err := asset.Bytes()
	if err != nil {
		return "", fmt.Errorf("storage: decode asset: %w", err)
	}

	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, raw, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return fullPath, nil
}

func extension(asset domain.InlineAsset) string {
	if f := asset.Format(); f == "jpeg" {
		return "jpg"
	} else if f != "" {
		return f
	}
	return "png"
}

// sanitizeKey keeps keys relative to the root.
func sanitizeKey(key string) (string, error) {
	key = strings.ReplaceAll(strings.TrimSpace(key), "\\", "/")
	key = strings.TrimLeft(strings.TrimPrefix(key, "./"), "/")
	if key == "" {
		return "", errors.New("storage: name is required")
	}
	cleaned := filepath.ToSlash(filepath.Clean(key))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("storage: invalid name %q", key)
	}
	return cleaned, nil
}

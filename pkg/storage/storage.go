// Package storage is the blob layer under the YAML repositories and the
// process report archive. Paths are slash separated and relative to the
// storage root, e.g. "tasks/<id>.yaml" or "reports/<process id>.txt".
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when a requested path does not exist in storage.
	ErrNotFound = errors.New("not found")
	// ErrInvalidPath is returned for paths that escape the storage root.
	ErrInvalidPath = errors.New("invalid path")
)

type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	// List returns the files directly under prefix. Missing prefixes list
	// as empty.
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// CleanPath normalizes p to its relative slash form. Ids used in paths come
// from RPC callers, so anything resolving outside the root is rejected.
func CleanPath(p string) (string, error) {
	c := path.Clean(strings.TrimLeft(p, "/"))
	if c == ".." || strings.HasPrefix(c, "../") {
		return "", fmt.Errorf("%s: %w", p, ErrInvalidPath)
	}
	if c == "." {
		return "", nil
	}
	return c, nil
}

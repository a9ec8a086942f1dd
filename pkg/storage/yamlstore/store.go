// Package yamlstore keeps one YAML document per entity under a storage prefix.
package yamlstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/storage"
)

// Store persists values of T at "<prefix>/<id>.yaml". kind names the entity
// in error messages.
type Store[T any] struct {
	storage storage.Storage
	prefix  string
	kind    string
	id      func(*T) string
}

func New[T any](s storage.Storage, prefix, kind string, id func(*T) string) *Store[T] {
	return &Store[T]{storage: s, prefix: prefix, kind: kind, id: id}
}

func (s *Store[T]) path(id string) string {
	return fmt.Sprintf("%s/%s.yaml", s.prefix, id)
}

// Create writes v and fails with AlreadyExists if its id is taken.
func (s *Store[T]) Create(ctx context.Context, v *T) error {
	exists, err := s.exists(ctx, s.id(v))
	if err != nil {
		return err
	}
	if exists {
		return cerr.NewError(cerr.AlreadyExists, s.kind+" already exists", nil)
	}
	return s.write(ctx, v)
}

// Update overwrites v and fails with NotFound if it was never created.
func (s *Store[T]) Update(ctx context.Context, v *T) error {
	exists, err := s.exists(ctx, s.id(v))
	if err != nil {
		return err
	}
	if !exists {
		return cerr.NewError(cerr.NotFound, s.kind+" not found", nil)
	}
	return s.write(ctx, v)
}

func (s *Store[T]) exists(ctx context.Context, id string) (bool, error) {
	ok, err := s.storage.Exists(ctx, s.path(id))
	if err != nil {
		return false, cerr.WrapStorageWriteError(s.kind, err)
	}
	return ok, nil
}

func (s *Store[T]) write(ctx context.Context, v *T) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", fmt.Errorf("marshal %s: %w", s.kind, err))
	}
	if err := s.storage.Write(ctx, s.path(s.id(v)), data); err != nil {
		return cerr.WrapStorageWriteError(s.kind, err)
	}
	return nil
}

func (s *Store[T]) Get(ctx context.Context, id string) (*T, error) {
	data, err := s.storage.Read(ctx, s.path(id))
	if err != nil {
		return nil, cerr.WrapStorageReadError(s.kind, err)
	}
	v := new(T)
	if err := yaml.Unmarshal(data, v); err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("unmarshal %s: %w", s.kind, err))
	}
	return v, nil
}

// List returns every readable document in path order. Unreadable or
// malformed documents are logged and skipped.
func (s *Store[T]) List(ctx context.Context) ([]*T, error) {
	paths, err := s.storage.List(ctx, s.prefix)
	if err != nil {
		return nil, cerr.WrapStorageReadError(s.kind, err)
	}
	slices.Sort(paths)

	all := make([]*T, 0, len(paths))
	for _, p := range paths {
		data, err := s.storage.Read(ctx, p)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable document", "kind", s.kind, "path", p, "error", err)
			continue
		}
		v := new(T)
		if err := yaml.Unmarshal(data, v); err != nil {
			slog.WarnContext(ctx, "skipping malformed document", "kind", s.kind, "path", p, "error", err)
			continue
		}
		all = append(all, v)
	}
	return all, nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, s.path(id)); err != nil {
		return cerr.WrapStorageDeleteError(s.kind, err)
	}
	return nil
}

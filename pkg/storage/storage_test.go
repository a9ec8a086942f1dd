package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStorageContract(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Read(ctx, "tasks/missing.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	exists, err := s.Exists(ctx, "tasks/a.yaml")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, s.Write(ctx, "tasks/a.yaml", []byte("id: a\n")))
	require.NoError(t, s.Write(ctx, "tasks/b.yaml", []byte("id: b\n")))
	require.NoError(t, s.Write(ctx, "reports/p.txt", []byte("report")))

	data, err := s.Read(ctx, "tasks/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "id: a\n", string(data))

	exists, err = s.Exists(ctx, "tasks/a.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	paths, err := s.List(ctx, "tasks")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"tasks/a.yaml", "tasks/b.yaml"}, paths)

	require.NoError(t, s.Delete(ctx, "tasks/a.yaml"))
	err = s.Delete(ctx, "tasks/a.yaml")
	assert.True(t, errors.Is(err, ErrNotFound))

	paths, err = s.List(ctx, "tasks")
	require.NoError(t, err)
	assert.Equal(t, []string{"tasks/b.yaml"}, paths)

	paths, err = s.List(ctx, "nothing-here")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLocalStorage(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	testStorageContract(t, s)
}

func TestMemoryStorage(t *testing.T) {
	testStorageContract(t, NewMemoryStorage())
}

func TestStorageRejectsEscapingPaths(t *testing.T) {
	ctx := context.Background()
	local, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for name, s := range map[string]Storage{"local": local, "memory": NewMemoryStorage()} {
		t.Run(name, func(t *testing.T) {
			err := s.Write(ctx, "../outside.txt", []byte("x"))
			assert.ErrorIs(t, err, ErrInvalidPath)
			_, err = s.Read(ctx, "reports/../../etc/passwd")
			assert.ErrorIs(t, err, ErrInvalidPath)
			_, err = s.List(ctx, "..")
			assert.ErrorIs(t, err, ErrInvalidPath)
		})
	}
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "reports/p1.txt", want: "reports/p1.txt"},
		{in: "/tasks/a.yaml", want: "tasks/a.yaml"},
		{in: "tasks//./a.yaml", want: "tasks/a.yaml"},
		{in: "tasks/../reports", want: "reports"},
		{in: "", want: ""},
		{in: "/", want: ""},
		{in: "..", wantErr: true},
		{in: "../x", wantErr: true},
		{in: "a/../../x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStorageListSkipsTempFiles(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	require.NoError(t, s.Write(ctx, "reports/p1.txt", []byte("report")))
	require.NoError(t, os.WriteFile(filepath.Join(base, "reports", "p2.txt.tmp"), []byte("partial"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "reports", "nested"), 0o755))

	paths, err := s.List(ctx, "/reports/")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports/p1.txt"}, paths)
}

package yamlstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/delegate/pkg/cerr"
	"github.com/kazz187/delegate/pkg/storage"
)

type note struct {
	ID   string `yaml:"id"`
	Body string `yaml:"body"`
}

func newNotes(s storage.Storage) *Store[note] {
	return New(s, "notes", "note", func(n *note) string { return n.ID })
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	backing := storage.NewMemoryStorage()
	notes := newNotes(backing)

	require.NoError(t, notes.Create(ctx, &note{ID: "b", Body: "second"}))
	require.NoError(t, notes.Create(ctx, &note{ID: "a", Body: "first"}))
	err := notes.Create(ctx, &note{ID: "a"})
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
	assert.Equal(t, "note already exists", cerr.Message(err))

	data, err := backing.Read(ctx, "notes/a.yaml")
	require.NoError(t, err)
	assert.Equal(t, "id: a\nbody: first\n", string(data))

	require.NoError(t, notes.Update(ctx, &note{ID: "a", Body: "edited"}))
	got, err := notes.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Body)
	assert.True(t, cerr.IsCode(notes.Update(ctx, &note{ID: "zz"}), cerr.NotFound))

	all, err := notes.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	require.NoError(t, notes.Delete(ctx, "b"))
	_, err = notes.Get(ctx, "b")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	assert.True(t, cerr.IsCode(notes.Delete(ctx, "b"), cerr.NotFound))
}

func TestStoreSkipsMalformedDocuments(t *testing.T) {
	ctx := context.Background()
	backing := storage.NewMemoryStorage()
	notes := newNotes(backing)

	require.NoError(t, notes.Create(ctx, &note{ID: "ok"}))
	require.NoError(t, backing.Write(ctx, "notes/bad.yaml", []byte("id: [unterminated")))

	all, err := notes.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "ok", all[0].ID)

	_, err = notes.Get(ctx, "bad")
	assert.True(t, cerr.IsCode(err, cerr.Internal))
}

func TestStoreRejectsEscapingIDs(t *testing.T) {
	ctx := context.Background()
	notes := newNotes(storage.NewMemoryStorage())

	_, err := notes.Get(ctx, "../../etc/passwd")
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	assert.Equal(t, "invalid note id", cerr.Message(err))
}

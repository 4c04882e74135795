package local

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotgo/depot/pkg/driver"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(Config{StoragePath: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("hello world"), "greeting.txt", "text/plain")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	f, err := s.Get(ctx, id)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "greeting.txt", f.Filename())
	assert.Equal(t, "text/plain", f.ContentType())
	assert.Equal(t, int64(11), f.ContentLength())

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestGetMissingFileReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Get(ctx, "019236a0-7b1e-71f0-8c4d-0242ac120002")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestGetInvalidIDReturnsErrInvalidID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Get(ctx, "../../etc/passwd")
	assert.ErrorIs(t, err, driver.ErrInvalidID)
}

func TestReplaceRequiresExistingFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Replace(ctx, "019236a0-7b1e-71f0-8c4d-0242ac120002", []byte("x"), "", "")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestReplaceKeepsIDAndUpdatesContent(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("v1"), "doc.txt", "")
	require.NoError(t, err)

	newID, err := s.Replace(ctx, id, []byte("v2"), "", "")
	require.NoError(t, err)
	assert.Equal(t, id, newID)

	f, err := s.Get(ctx, id)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "doc.txt", f.Filename(), "filename should be preserved when not overridden")
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestDeleteThenExists(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("gone soon"), "", "")
	require.NoError(t, err)

	exists, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, s.Delete(ctx, id))

	exists, err = s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteOfMissingFileIsNotAnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)
	assert.NoError(t, s.Delete(ctx, "019236a0-7b1e-71f0-8c4d-0242ac120002"))
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id1, err := s.Create(ctx, []byte("a"), "", "")
	require.NoError(t, err)
	id2, err := s.Create(ctx, []byte("b"), "", "")
	require.NoError(t, err)

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{id1, id2}, ids)
}

func TestNewRequiresStoragePath(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, driver.ErrConfiguration)
}

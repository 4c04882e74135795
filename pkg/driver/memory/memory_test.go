package memory

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotgo/depot/pkg/driver"
)

func TestCreateGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, []byte("payload"), "doc.bin", "application/octet-stream")
	require.NoError(t, err)

	f, err := s.Get(ctx, id)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, "doc.bin", f.Filename())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestGetReturnsDefensiveCopy(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, []byte("original"), "", "")
	require.NoError(t, err)

	f1, err := s.Get(ctx, id)
	require.NoError(t, err)

	_, err = s.Replace(ctx, id, []byte("changed"), "", "")
	require.NoError(t, err)

	data, err := io.ReadAll(f1)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data), "handle obtained before Replace must not observe the new content")
}

func TestReplaceMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Replace(ctx, "019236a0-7b1e-71f0-8c4d-0242ac120002", []byte("x"), "", "")
	assert.ErrorIs(t, err, driver.ErrNotFound)
}

func TestDeleteExists(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.Create(ctx, []byte("x"), "", "")
	require.NoError(t, err)

	ok, err := s.Exists(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, id))

	ok, err = s.Exists(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestList(t *testing.T) {
	ctx := context.Background()
	s := New()

	id1, _ := s.Create(ctx, []byte("a"), "", "")
	id2, _ := s.Create(ctx, []byte("b"), "", "")

	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{id1, id2}, ids)
}

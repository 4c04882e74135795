//go:build integration

package gcs

import (
	"context"
	"io"
	"os"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/depotgo/depot/pkg/driver"
)

// newTestStorage targets the fake-gcs-server emulator pointed to by
// STORAGE_EMULATOR_HOST, matching the teacher's localstack-via-env-var
// convention for other cloud-backed stores.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	endpoint := os.Getenv("STORAGE_EMULATOR_HOST")
	if endpoint == "" {
		t.Skip("STORAGE_EMULATOR_HOST not set, skipping GCS integration test")
	}

	client, err := storage.NewClient(ctx, option.WithoutAuthentication(), option.WithEndpoint(endpoint))
	require.NoError(t, err)

	bucket := "depot-test-" + uuid.NewString()
	s, err := New(ctx, client, Config{ProjectID: "test-project", Bucket: bucket, Policy: ACLPrivate})
	require.NoError(t, err)
	return s
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("hello gcs"), "greeting.txt", "text/plain")
	require.NoError(t, err)

	f, err := s.Get(ctx, id)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, "greeting.txt", f.Filename())
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello gcs", string(data))
}

func TestDeleteThenGetIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("gone"), "", "")
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, driver.ErrNotFound)
}

func TestGetInvalidIDReturnsErrInvalidID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Get(ctx, "not-an-id")
	require.ErrorIs(t, err, driver.ErrInvalidID)
}

func TestExistsReplaceDeleteRejectInvalidID(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Exists(ctx, "not-an-id")
	require.ErrorIs(t, err, driver.ErrInvalidID)

	_, err = s.Replace(ctx, "not-an-id", []byte("x"), "", "")
	require.ErrorIs(t, err, driver.ErrInvalidID)

	err = s.Delete(ctx, "not-an-id")
	require.ErrorIs(t, err, driver.ErrInvalidID)
}

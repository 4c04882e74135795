package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/depotgo/depot/pkg/driver"
)

func TestBuildRegistryConfiguresMemoryAndLocalStores(t *testing.T) {
	ctx := context.Background()
	cfg := RegistryConfig{
		Stores: []StoreConfig{
			{Name: "cache", Backend: "memory"},
			{Name: "disk", Backend: "local", Options: map[string]any{
				"storage_path": filepath.Join(t.TempDir(), "blobs"),
			}},
		},
		DefaultStore: "disk",
		Aliases:      map[string]string{"primary": "disk"},
	}

	reg, err := BuildRegistry(ctx, cfg)
	require.NoError(t, err)

	name, err := reg.GetDefault()
	require.NoError(t, err)
	require.Equal(t, "disk", name)

	resolved, ok := reg.Resolve("primary")
	require.True(t, ok)
	require.Equal(t, "disk", resolved)

	store, err := reg.Get("cache")
	require.NoError(t, err)
	id, err := store.Create(ctx, []byte("hi"), "f.txt", "text/plain")
	require.NoError(t, err)
	require.NotEmpty(t, id)
}

func TestBuildRegistryUnknownBackendIsConfigurationError(t *testing.T) {
	_, err := BuildRegistry(context.Background(), RegistryConfig{
		Stores: []StoreConfig{{Name: "bogus", Backend: "nonexistent"}},
	})
	require.ErrorIs(t, err, driver.ErrConfiguration)
}

func TestRegisterDriverBuilderAddsLoadableBackend(t *testing.T) {
	RegisterDriverBuilder("test-stub", buildMemory)
	t.Cleanup(func() { RegisterDriverBuilder("test-stub", nil) })

	reg, err := BuildRegistry(context.Background(), RegistryConfig{
		Stores: []StoreConfig{{Name: "stub", Backend: "test-stub"}},
	})
	require.NoError(t, err)
	_, err = reg.Get("stub")
	require.NoError(t, err)
}

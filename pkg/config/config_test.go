package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadNoFileReturnsDefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/depot", cfg.HTTP.Mountpoint)
	require.Len(t, cfg.Registry.Stores, 1)
	require.Equal(t, "default", cfg.Registry.DefaultStore)
}

func TestLoadAppliesDefaultsAndValidates(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
registry:
  stores:
    - name: default
      backend: local
      options:
        storage_path: ` + filepath.ToSlash(tmpDir) + `/blobs
http:
  mountpoint: /files
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.Equal(t, "/files", cfg.HTTP.Mountpoint)
	require.Equal(t, "INFO", cfg.Logging.Level)
	require.Equal(t, "text", cfg.Logging.Format)
	require.Equal(t, "default", cfg.Registry.DefaultStore)
	require.Equal(t, "local", cfg.Registry.Stores[0].Backend)
}

func TestLoadRejectsAliasCollidingWithStoreName(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
registry:
  stores:
    - name: default
      backend: memory
  aliases:
    default: default
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestLoadRejectsUnknownDefaultStore(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
registry:
  stores:
    - name: default
      backend: memory
  default_store: nosuchstore
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	_, err := Load(configPath)
	require.Error(t, err)
}

func TestSaveConfigRoundTrips(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "nested", "config.yaml")

	cfg := DefaultConfig()
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Registry.Stores[0].Name, loaded.Registry.Stores[0].Name)
}

func TestMustLoadReportsMissingExplicitFile(t *testing.T) {
	_, err := MustLoad("/no/such/path/config.yaml")
	require.Error(t, err)
}

func TestEnvironmentVariableOverridesMountpoint(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	content := `
registry:
  stores:
    - name: default
      backend: memory
http:
  mountpoint: /files
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))

	t.Setenv("DEPOT_HTTP_MOUNTPOINT", "/env-override")
	cfg, err := Load(configPath)
	require.NoError(t, err)
	require.Equal(t, "/env-override", cfg.HTTP.Mountpoint)
}

// Package local implements a driver.FileStorage backed by a local
// filesystem directory. Each file is stored in its own subdirectory,
// storage_path/<file-id>/, holding a "file" payload and a "metadata.json"
// sidecar describing filename, content type, size and modification time.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/fileid"
)

const (
	payloadFilename  = "file"
	metadataFilename = "metadata.json"
)

// Config configures a local filesystem store.
type Config struct {
	// StoragePath is the root directory files are stored under. It is
	// created, along with any missing parents, if it does not exist.
	StoragePath string `mapstructure:"storage_path" yaml:"storage_path" validate:"required"`

	// DirMode is the permission mode used for created directories.
	DirMode os.FileMode `mapstructure:"dir_mode" yaml:"dir_mode"`

	// FileMode is the permission mode used for created files.
	FileMode os.FileMode `mapstructure:"file_mode" yaml:"file_mode"`
}

func (c Config) withDefaults() Config {
	if c.DirMode == 0 {
		c.DirMode = 0o755
	}
	if c.FileMode == 0 {
		c.FileMode = 0o644
	}
	return c
}

type metadata struct {
	Filename      string    `json:"filename"`
	ContentType   string    `json:"content_type"`
	ContentLength int64     `json:"content_length"`
	LastModified  time.Time `json:"last_modified"`
}

// Storage is a driver.FileStorage implementation backed by local disk.
type Storage struct {
	mu  sync.RWMutex
	cfg Config
}

// New constructs a Storage rooted at cfg.StoragePath, creating the
// directory if it does not already exist.
func New(cfg Config) (*Storage, error) {
	if cfg.StoragePath == "" {
		return nil, driver.NewError("configure", "local", "", fmt.Errorf("%w: storage_path is required", driver.ErrConfiguration))
	}
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(cfg.StoragePath, cfg.DirMode); err != nil {
		return nil, driver.NewError("configure", "local", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return &Storage{cfg: cfg}, nil
}

func (s *Storage) pathFor(id string) string {
	return filepath.Join(s.cfg.StoragePath, id)
}

func (s *Storage) payloadPath(id string) string {
	return filepath.Join(s.pathFor(id), payloadFilename)
}

func (s *Storage) metadataPath(id string) string {
	return filepath.Join(s.pathFor(id), metadataFilename)
}

func (s *Storage) Create(ctx context.Context, content any, filename, contentType string) (string, error) {
	id := fileid.New()
	if err := s.save(id, content, filename, contentType); err != nil {
		return "", driver.NewError("create", "local", id, err)
	}
	logger.DebugCtx(ctx, "local: file created", logger.FileID(id), logger.Filename(filename))
	return id, nil
}

func (s *Storage) save(id string, content any, filename, contentType string) error {
	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.pathFor(id)
	if err := os.MkdirAll(dir, s.cfg.DirMode); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
	}

	payloadPath := s.payloadPath(id)
	tmpPath := payloadPath + ".tmp"
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, s.cfg.FileMode)
	if err != nil {
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
	}
	written, copyErr := io.Copy(f, resolved.Reader)
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, closeErr)
	}
	if err := os.Rename(tmpPath, payloadPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
	}

	meta := metadata{
		Filename:      resolved.Filename,
		ContentType:   resolved.ContentType,
		ContentLength: written,
		LastModified:  time.Now().UTC().Truncate(time.Second),
	}
	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
	}
	if err := os.WriteFile(s.metadataPath(id), metaBytes, s.cfg.FileMode); err != nil {
		return fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, fileID string) (driver.StoredFile, error) {
	if !fileid.Valid(fileID) {
		return nil, driver.NewError("get", "local", fileID, driver.ErrInvalidID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	metaBytes, err := os.ReadFile(s.metadataPath(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, driver.NewError("get", "local", fileID, driver.ErrNotFound)
		}
		return nil, driver.NewError("get", "local", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	var meta metadata
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, driver.NewError("get", "local", fileID, fmt.Errorf("%w: invalid metadata: %v", driver.ErrBackendUnavailable, err))
	}

	return &storedFile{
		id:   fileID,
		path: s.payloadPath(fileID),
		meta: meta,
	}, nil
}

func (s *Storage) Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error) {
	if !fileid.Valid(fileID) {
		return "", driver.NewError("replace", "local", fileID, driver.ErrInvalidID)
	}

	exists, err := s.Exists(ctx, fileID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", driver.NewError("replace", "local", fileID, driver.ErrNotFound)
	}

	if filename == "" || contentType == "" {
		if existing, err := s.Get(ctx, fileID); err == nil {
			if filename == "" {
				filename = existing.Filename()
			}
			if contentType == "" {
				contentType = existing.ContentType()
			}
			existing.Close()
		}
	}

	if err := s.Delete(ctx, fileID); err != nil {
		return "", err
	}
	if err := s.save(fileID, content, filename, contentType); err != nil {
		return "", driver.NewError("replace", "local", fileID, err)
	}
	logger.DebugCtx(ctx, "local: file replaced", logger.FileID(fileID))
	return fileID, nil
}

func (s *Storage) Delete(ctx context.Context, fileID string) error {
	if !fileid.Valid(fileID) {
		return driver.NewError("delete", "local", fileID, driver.ErrInvalidID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.pathFor(fileID)); err != nil {
		return driver.NewError("delete", "local", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return nil
}

func (s *Storage) Exists(ctx context.Context, fileID string) (bool, error) {
	if !fileid.Valid(fileID) {
		return false, driver.NewError("exists", "local", fileID, driver.ErrInvalidID)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.pathFor(fileID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, driver.NewError("exists", "local", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}
	return true, nil
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.cfg.StoragePath)
	if err != nil {
		return nil, driver.NewError("list", "local", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

var _ driver.FileStorage = (*Storage)(nil)

// Package memory implements a driver.FileStorage backed by an in-process
// map. It exists for tests and for small deployments that don't need
// durability; nothing here survives a process restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/fileid"
)

type entry struct {
	data         []byte
	filename     string
	contentType  string
	lastModified time.Time
}

// Storage is a driver.FileStorage implementation backed by a map held in
// process memory, guarded by a RWMutex.
type Storage struct {
	mu    sync.RWMutex
	files map[string]*entry
}

// New constructs an empty in-memory store.
func New() *Storage {
	return &Storage{files: make(map[string]*entry)}
}

func (s *Storage) Create(ctx context.Context, content any, filename, contentType string) (string, error) {
	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return "", driver.NewError("create", "memory", "", err)
	}

	data, err := io.ReadAll(resolved.Reader)
	if err != nil {
		return "", driver.NewError("create", "memory", "", fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	id := fileid.New()
	s.mu.Lock()
	s.files[id] = &entry{
		data:         data,
		filename:     resolved.Filename,
		contentType:  resolved.ContentType,
		lastModified: time.Now().UTC().Truncate(time.Second),
	}
	s.mu.Unlock()

	logger.DebugCtx(ctx, "memory: file created", logger.FileID(id), logger.Filename(resolved.Filename))
	return id, nil
}

func (s *Storage) Get(ctx context.Context, fileID string) (driver.StoredFile, error) {
	if !fileid.Valid(fileID) {
		return nil, driver.NewError("get", "memory", fileID, driver.ErrInvalidID)
	}

	s.mu.RLock()
	e, ok := s.files[fileID]
	s.mu.RUnlock()
	if !ok {
		return nil, driver.NewError("get", "memory", fileID, driver.ErrNotFound)
	}

	// Defensive copy: callers must not observe concurrent Replace/Delete
	// through a handle they already hold.
	data := make([]byte, len(e.data))
	copy(data, e.data)

	return &storedFile{
		id:           fileID,
		reader:       bytes.NewReader(data),
		filename:     e.filename,
		contentType:  e.contentType,
		length:       int64(len(data)),
		lastModified: e.lastModified,
	}, nil
}

func (s *Storage) Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error) {
	if !fileid.Valid(fileID) {
		return "", driver.NewError("replace", "memory", fileID, driver.ErrInvalidID)
	}

	s.mu.Lock()
	existing, ok := s.files[fileID]
	s.mu.Unlock()
	if !ok {
		return "", driver.NewError("replace", "memory", fileID, driver.ErrNotFound)
	}

	if filename == "" {
		filename = existing.filename
	}
	if contentType == "" {
		contentType = existing.contentType
	}

	resolved, err := driver.ResolveContent(content, filename, contentType)
	if err != nil {
		return "", driver.NewError("replace", "memory", fileID, err)
	}

	data, err := io.ReadAll(resolved.Reader)
	if err != nil {
		return "", driver.NewError("replace", "memory", fileID, fmt.Errorf("%w: %v", driver.ErrBackendUnavailable, err))
	}

	s.mu.Lock()
	s.files[fileID] = &entry{
		data:         data,
		filename:     resolved.Filename,
		contentType:  resolved.ContentType,
		lastModified: time.Now().UTC().Truncate(time.Second),
	}
	s.mu.Unlock()

	logger.DebugCtx(ctx, "memory: file replaced", logger.FileID(fileID))
	return fileID, nil
}

func (s *Storage) Delete(ctx context.Context, fileID string) error {
	if !fileid.Valid(fileID) {
		return driver.NewError("delete", "memory", fileID, driver.ErrInvalidID)
	}

	s.mu.Lock()
	delete(s.files, fileID)
	s.mu.Unlock()
	return nil
}

func (s *Storage) Exists(ctx context.Context, fileID string) (bool, error) {
	if !fileid.Valid(fileID) {
		return false, driver.NewError("exists", "memory", fileID, driver.ErrInvalidID)
	}

	s.mu.RLock()
	_, ok := s.files[fileID]
	s.mu.RUnlock()
	return ok, nil
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	return ids, nil
}

var _ driver.FileStorage = (*Storage)(nil)

package local

import (
	"os"
	"time"
)

// storedFile is a driver.StoredFile backed by a file on local disk. The
// underlying file is opened lazily on first Read, matching the Python
// ancestor's guarantee that closing a file before reading it still behaves.
type storedFile struct {
	id   string
	path string
	meta metadata

	f *os.File
}

func (s *storedFile) ensureOpen() error {
	if s.f != nil {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	s.f = f
	return nil
}

func (s *storedFile) Read(p []byte) (int, error) {
	if err := s.ensureOpen(); err != nil {
		return 0, err
	}
	return s.f.Read(p)
}

func (s *storedFile) Close() error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.f.Close()
}

func (s *storedFile) FileID() string         { return s.id }
func (s *storedFile) Filename() string       { return s.meta.Filename }
func (s *storedFile) ContentType() string    { return s.meta.ContentType }
func (s *storedFile) ContentLength() int64   { return s.meta.ContentLength }
func (s *storedFile) LastModified() time.Time { return s.meta.LastModified }
func (s *storedFile) PublicURL() string      { return "" }

package memory

import (
	"bytes"
	"time"
)

// storedFile is a driver.StoredFile backed by a byte slice snapshot taken
// at Get time.
type storedFile struct {
	id           string
	reader       *bytes.Reader
	filename     string
	contentType  string
	length       int64
	lastModified time.Time
}

func (s *storedFile) Read(p []byte) (int, error) { return s.reader.Read(p) }
func (s *storedFile) Close() error               { return nil }

func (s *storedFile) FileID() string          { return s.id }
func (s *storedFile) Filename() string        { return s.filename }
func (s *storedFile) ContentType() string     { return s.contentType }
func (s *storedFile) ContentLength() int64    { return s.length }
func (s *storedFile) LastModified() time.Time { return s.lastModified }
func (s *storedFile) PublicURL() string       { return "" }

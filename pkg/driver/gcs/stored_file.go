package gcs

import (
	"io"
	"time"
)

// storedFile streams directly from a GCS object reader.
type storedFile struct {
	id           string
	body         io.ReadCloser
	filename     string
	contentType  string
	length       int64
	lastModified time.Time
	publicURL    string
}

func (s *storedFile) Read(p []byte) (int, error) { return s.body.Read(p) }
func (s *storedFile) Close() error               { return s.body.Close() }

func (s *storedFile) FileID() string          { return s.id }
func (s *storedFile) Filename() string        { return s.filename }
func (s *storedFile) ContentType() string     { return s.contentType }
func (s *storedFile) ContentLength() int64    { return s.length }
func (s *storedFile) LastModified() time.Time { return s.lastModified }
func (s *storedFile) PublicURL() string       { return s.publicURL }

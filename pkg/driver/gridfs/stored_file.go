package gridfs

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo/gridfs"
)

// storedFile streams directly from a GridFS download stream.
type storedFile struct {
	id           string
	stream       *gridfs.DownloadStream
	filename     string
	contentType  string
	length       int64
	lastModified time.Time
}

func (s *storedFile) Read(p []byte) (int, error) { return s.stream.Read(p) }
func (s *storedFile) Close() error               { return s.stream.Close() }

func (s *storedFile) FileID() string          { return s.id }
func (s *storedFile) Filename() string        { return s.filename }
func (s *storedFile) ContentType() string     { return s.contentType }
func (s *storedFile) ContentLength() int64    { return s.length }
func (s *storedFile) LastModified() time.Time { return s.lastModified }
func (s *storedFile) PublicURL() string       { return "" }

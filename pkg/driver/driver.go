// Package driver defines the storage driver interface that every depot
// backend implements, along with the content-derivation helpers shared by
// all of them.
package driver

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// DefaultContentType is used when no content type can be determined from
// the payload, an explicit override, or the filename's extension.
const DefaultContentType = "application/octet-stream"

// DefaultFilename is used when no filename can be determined.
const DefaultFilename = "unnamed"

// StoredFile is a read-only, sequential handle to a previously stored file.
// It is not seekable: drivers that stream from a remote backend (S3, GCS,
// GridFS) cannot offer random access without buffering the whole payload.
type StoredFile interface {
	io.ReadCloser

	// FileID returns the opaque id this file was stored under.
	FileID() string

	// Filename returns the name attached to the file, if any.
	Filename() string

	// ContentType returns the MIME type attached to the file.
	ContentType() string

	// ContentLength returns the size of the file in bytes, or -1 if unknown.
	ContentLength() int64

	// LastModified returns the time the file was last written.
	LastModified() time.Time

	// PublicURL returns a backend-served URL for the file, or "" if the
	// driver has no notion of a public URL (the caller should fall back to
	// serving the bytes itself).
	PublicURL() string
}

// FileIntent represents the intention to store a file, carrying explicit
// filename/content-type overrides alongside the raw payload. Passing a
// FileIntent lets a caller supply metadata that cannot be inferred from the
// payload itself (e.g. storing raw bytes read from a non-file source).
type FileIntent struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// NewFileIntent builds a FileIntent from a reader and explicit metadata.
func NewFileIntent(r io.Reader, filename, contentType string) *FileIntent {
	return &FileIntent{Reader: r, Filename: filename, ContentType: contentType}
}

// FileStorage is the interface every concrete storage driver implements.
// FileID arguments and return values are opaque strings; callers must not
// assume a particular encoding beyond what the driver documents.
type FileStorage interface {
	// Create stores content under a newly minted file id and returns it.
	// content may be an io.Reader, a []byte, or a *FileIntent.
	Create(ctx context.Context, content any, filename, contentType string) (fileID string, err error)

	// Get returns a handle to the stored file identified by fileID.
	// The caller must Close the returned StoredFile.
	Get(ctx context.Context, fileID string) (StoredFile, error)

	// Replace overwrites the file identified by fileID with new content,
	// returning the (possibly unchanged) file id.
	Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error)

	// Delete removes the file identified by fileID. Deleting a file that
	// does not exist is not an error.
	Delete(ctx context.Context, fileID string) error

	// Exists reports whether a file with the given id is stored.
	Exists(ctx context.Context, fileID string) (bool, error)

	// List returns every file id currently stored. Drivers backed by
	// buckets or collections may page internally; callers should not rely
	// on ordering.
	List(ctx context.Context) ([]string, error)
}

// resolvedContent is a sequential reader over payload content, reported
// alongside the metadata derived for it.
type resolvedContent struct {
	Reader      io.Reader
	Filename    string
	ContentType string
}

// namedReader is implemented by readers that know their own filename
// (e.g. *os.File).
type namedReader interface {
	Name() string
}

// typedReader is implemented by readers that know their own content type
// (e.g. multipart.FileHeader wrappers).
type typedReader interface {
	ContentType() string
}

// ResolveContent turns content (an io.Reader, []byte, or *FileIntent) plus
// optional filename/contentType overrides into a reader and the filename
// and content type depot should record for it. It mirrors the precedence
// rules depot's Python ancestor used: an explicit argument always wins,
// otherwise the payload's own filename/type is used, otherwise the
// filename's extension is used to guess a MIME type, and finally sensible
// defaults are substituted.
func ResolveContent(content any, filename, contentType string) (*resolvedContent, error) {
	resolved, err := resolve(content, filename, contentType)
	if err != nil {
		return nil, err
	}

	if resolved.Filename == "" {
		resolved.Filename = DefaultFilename
	}
	if resolved.ContentType == "" {
		resolved.ContentType = DefaultContentType
	}
	return resolved, nil
}

func resolve(content any, filename, contentType string) (*resolvedContent, error) {
	switch v := content.(type) {
	case *FileIntent:
		r := v.Reader
		if filename == "" {
			filename = v.Filename
		}
		if contentType == "" {
			contentType = v.ContentType
		}
		return finishResolve(r, filename, contentType)
	case []byte:
		return finishResolve(newByteReader(v), filename, contentType)
	case io.Reader:
		return finishResolve(v, filename, contentType)
	default:
		return nil, ErrUnsupportedPayload
	}
}

func finishResolve(r io.Reader, filename, contentType string) (*resolvedContent, error) {
	if filename == "" {
		if nr, ok := r.(namedReader); ok {
			filename = filepath.Base(nr.Name())
		}
	}
	if contentType == "" {
		if tr, ok := r.(typedReader); ok {
			contentType = tr.ContentType()
		}
	}
	if contentType == "" && filename != "" {
		contentType = guessContentType(filename)
	}
	return &resolvedContent{Reader: r, Filename: filename, ContentType: contentType}, nil
}

func guessContentType(filename string) string {
	ext := filepath.Ext(filename)
	if ext == "" {
		return ""
	}
	if t := mime.TypeByExtension(ext); t != "" {
		// strip any "; charset=..." suffix mime.TypeByExtension may add
		if idx := strings.Index(t, ";"); idx != -1 {
			t = strings.TrimSpace(t[:idx])
		}
		return t
	}
	return ""
}

type byteReader struct {
	data []byte
	pos  int
}

func newByteReader(b []byte) *byteReader {
	return &byteReader{data: b}
}

func (b *byteReader) Read(p []byte) (int, error) {
	if b.pos >= len(b.data) {
		return 0, io.EOF
	}
	n := copy(p, b.data[b.pos:])
	b.pos += n
	return n, nil
}

package driver

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by driver implementations. Callers should match
// against these with errors.Is, never against a driver's own error type.
var (
	// ErrNotFound indicates no file exists for the given id.
	ErrNotFound = errors.New("depot: file not found")

	// ErrInvalidID indicates a file id is malformed for the target driver
	// (not a UUID for drivers that mint UUIDs, not a 12-byte ObjectID for
	// GridFS, or otherwise fails the driver's own id syntax).
	ErrInvalidID = errors.New("depot: invalid file id")

	// ErrBackendUnavailable indicates the underlying backend (disk, bucket,
	// database) could not be reached or returned a transient failure.
	ErrBackendUnavailable = errors.New("depot: backend unavailable")

	// ErrUnsupportedPayload indicates the given content could not be turned
	// into a readable stream (e.g. an unsupported type was passed to Create).
	ErrUnsupportedPayload = errors.New("depot: unsupported payload type")

	// ErrConfiguration indicates a driver was constructed with invalid or
	// incomplete configuration (e.g. a bucket name required but omitted).
	ErrConfiguration = errors.New("depot: invalid driver configuration")

	// ErrFrozenMutation indicates a mutation was attempted on an attachment
	// record that has already been saved and frozen.
	ErrFrozenMutation = errors.New("depot: cannot mutate a saved attachment")

	// ErrMalformedRequest indicates input that could not be encoded or
	// decoded, such as an attachment record's JSON form. The HTTP serving
	// layer does not use it: it answers a malformed If-Modified-Since with
	// 400 and a path without a store and file id with 404 directly.
	ErrMalformedRequest = errors.New("depot: malformed request")
)

// Error wraps a sentinel error with operational context: which store and
// file id were involved, and what operation was being attempted. Wrapping
// preserves errors.Is/errors.As compatibility with the sentinel.
type Error struct {
	Op     string // create, get, replace, delete, exists, list, serve
	Store  string // registry store name
	FileID string // file id involved, if any
	Err    error  // wrapped sentinel error
}

func (e *Error) Error() string {
	if e.FileID != "" {
		return fmt.Sprintf("depot: %s %s: file %s: %v", e.Store, e.Op, e.FileID, e.Err)
	}
	return fmt.Sprintf("depot: %s %s: %v", e.Store, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with operation and store context.
func NewError(op, store, fileID string, err error) *Error {
	return &Error{Op: op, Store: store, FileID: fileID, Err: err}
}

// Package attachment implements the row-side representation bound by an
// Attachment Field: a small JSON-serializable record describing where a
// blob lives (which store, which file id) plus enough metadata to serve it
// without a round trip to the driver. Once an AttachedFile has been saved
// into a row it is frozen: every mutator refuses further changes, which is
// what lets the transaction tracker reason about "the value that was in
// this column before this request" without it shifting under it.
package attachment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/depotgo/depot/pkg/driver"
)

const timeLayout = "2006-01-02 15:04:05"

// AttachedFile is the value stored in a database column behind an
// Attachment Field. Known fields are typed; anything else present in a
// decoded JSON document (added by a filter, or by a future field version)
// is preserved in extra and round-trips unchanged.
type AttachedFile struct {
	DepotName   string   `json:"depot_name"`
	Files       []string `json:"files"`
	FileID      string   `json:"file_id"`
	Path        string   `json:"path"`
	Filename    string   `json:"filename"`
	ContentType string   `json:"content_type"`
	UploadedAt  string   `json:"uploaded_at"`
	PublicURL   string   `json:"_public_url,omitempty"`

	extra  map[string]json.RawMessage
	frozen bool

	// originalContent is the payload given to New, kept around only long
	// enough for filter hooks to run against it. Absent (nil) once an
	// AttachedFile has been materialized from a row, signaling that no
	// filters should run against already-stored content.
	originalContent any
}

// Filter can inspect or annotate an AttachedFile after its blob has been
// created but before it is frozen. This is the Go analogue of a file
// filter hook: it runs once, against original_content, and never again.
type Filter interface {
	OnSave(*AttachedFile) error
}

// New creates a new blob in store under storeName (which may be an alias;
// the resolved concrete name is NOT what's persisted — the caller-supplied
// name is, so that later re-aliasing is transparent to existing rows) and
// returns a populated, not-yet-frozen AttachedFile. Apply filters, then
// call Freeze before persisting the encoded form into a row.
func New(ctx context.Context, store driver.FileStorage, storeName string, content any, filename, contentType string) (*AttachedFile, error) {
	if storeName == "" {
		return nil, fmt.Errorf("%w: store name is required", driver.ErrConfiguration)
	}

	fileID, err := store.Create(ctx, content, filename, contentType)
	if err != nil {
		return nil, err
	}

	f, err := store.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	af := &AttachedFile{
		DepotName:       storeName,
		FileID:          fileID,
		Path:            storeName + "/" + fileID,
		Filename:        f.Filename(),
		ContentType:     f.ContentType(),
		UploadedAt:      time.Now().UTC().Format(timeLayout),
		originalContent: content,
	}
	af.Files = []string{af.Path}
	if url := f.PublicURL(); url != "" {
		af.PublicURL = url
	}
	return af, nil
}

// ApplyFilters runs each filter against the AttachedFile's original
// content, then freezes it. A no-op (aside from freezing) if the value was
// materialized from a row rather than newly created, since original
// content is unavailable by then.
func (a *AttachedFile) ApplyFilters(filters ...Filter) error {
	if a.originalContent != nil {
		for _, filt := range filters {
			if err := filt.OnSave(a); err != nil {
				return err
			}
		}
	}
	a.frozen = true
	return nil
}

// Freeze marks the AttachedFile immutable without running any filters.
func (a *AttachedFile) Freeze() { a.frozen = true }

// Frozen reports whether further mutation is refused.
func (a *AttachedFile) Frozen() bool { return a.frozen }

// AddDerivedFile records that this AttachedFile also owns a derived
// artifact stored at storeName/fileID (e.g. a thumbnail produced by a
// filter). Refused once frozen.
func (a *AttachedFile) AddDerivedFile(storeName, fileID string) error {
	if a.frozen {
		return fmt.Errorf("%w: AttachedFile is already saved", driver.ErrFrozenMutation)
	}
	a.Files = append(a.Files, storeName+"/"+fileID)
	return nil
}

// SetExtra stores an extension attribute not covered by the typed fields.
// Refused once frozen.
func (a *AttachedFile) SetExtra(key string, value any) error {
	if a.frozen {
		return fmt.Errorf("%w: AttachedFile is already saved", driver.ErrFrozenMutation)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: encoding extra attribute %q: %v", driver.ErrMalformedRequest, key, err)
	}
	if a.extra == nil {
		a.extra = make(map[string]json.RawMessage)
	}
	a.extra[key] = raw
	return nil
}

// Extra decodes an extension attribute previously set with SetExtra, or
// present in decoded JSON that the typed fields don't cover.
func (a *AttachedFile) Extra(key string, out any) (bool, error) {
	raw, ok := a.extra[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("%w: decoding extra attribute %q: %v", driver.ErrMalformedRequest, key, err)
	}
	return true, nil
}

// Encode marshals the AttachedFile into the single JSON string that lives
// in the database row.
func (a *AttachedFile) Encode() (string, error) {
	out := make(map[string]json.RawMessage, len(a.extra)+8)
	for k, v := range a.extra {
		out[k] = v
	}

	type alias AttachedFile
	known, err := json.Marshal((*alias)(a))
	if err != nil {
		return "", fmt.Errorf("%w: %v", driver.ErrMalformedRequest, err)
	}
	var knownMap map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownMap); err != nil {
		return "", fmt.Errorf("%w: %v", driver.ErrMalformedRequest, err)
	}
	for k, v := range knownMap {
		out[k] = v
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("%w: %v", driver.ErrMalformedRequest, err)
	}
	return string(encoded), nil
}

// Decode materializes an AttachedFile from its JSON row form. The result is
// frozen and has no original content, so ApplyFilters on it is a no-op
// beyond the (already-true) frozen flag.
func Decode(data []byte) (*AttachedFile, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrMalformedRequest, err)
	}

	type alias AttachedFile
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrMalformedRequest, err)
	}

	known := []string{"depot_name", "files", "file_id", "path", "filename", "content_type", "uploaded_at", "_public_url"}
	for _, k := range known {
		delete(raw, k)
	}

	af := AttachedFile(a)
	result := &af
	result.frozen = true
	if len(raw) > 0 {
		result.extra = raw
	}
	return result, nil
}

// File opens the underlying blob via store, which must be the same store
// (or one aliased to it) named by DepotName.
func (a *AttachedFile) File(ctx context.Context, store driver.FileStorage) (driver.StoredFile, error) {
	return store.Get(ctx, a.FileID)
}

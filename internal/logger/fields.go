package logger

import "log/slog"

// Standard field keys for structured logging, scoped to storage-driver
// and HTTP-serving operations (no protocol-specific fields: this is a
// blob store, not a filesystem gateway).
const (
	KeyRequestID  = "request_id"
	KeyStoreName  = "store_name"
	KeyStoreType  = "store_type"
	KeyOperation  = "operation"
	KeyFileID     = "file_id"
	KeyFilename   = "filename"
	KeyContentLen = "content_length"
	KeyBucket     = "bucket"
	KeyKey        = "key"
	KeyRegion     = "region"
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyStatus     = "status"
	KeyMethod     = "method"
	KeyPath       = "path"
)

func RequestID(id string) slog.Attr    { return slog.String(KeyRequestID, id) }
func StoreName(name string) slog.Attr  { return slog.String(KeyStoreName, name) }
func StoreType(t string) slog.Attr     { return slog.String(KeyStoreType, t) }
func Operation(op string) slog.Attr    { return slog.String(KeyOperation, op) }
func FileID(id string) slog.Attr       { return slog.String(KeyFileID, id) }
func Filename(name string) slog.Attr   { return slog.String(KeyFilename, name) }
func ContentLen(n int64) slog.Attr     { return slog.Int64(KeyContentLen, n) }
func Bucket(name string) slog.Attr     { return slog.String(KeyBucket, name) }
func Key(k string) slog.Attr           { return slog.String(KeyKey, k) }
func Region(r string) slog.Attr        { return slog.String(KeyRegion, r) }
func DurationMs(ms float64) slog.Attr  { return slog.Float64(KeyDurationMs, ms) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }

func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

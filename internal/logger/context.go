package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds request/operation-scoped fields threaded through a
// context.Context so log lines across a driver call or HTTP request
// correlate without explicit plumbing.
type LogContext struct {
	RequestID string // HTTP request id, or caller-supplied correlation id
	StoreName string // registry store name the operation targets
	Operation string // create, get, replace, delete, exists, list, serve
	FileID    string // file id involved in the operation, if any
	StartTime time.Time
}

func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

func NewLogContext(operation, storeName string) *LogContext {
	return &LogContext{
		Operation: operation,
		StoreName: storeName,
		StartTime: time.Now(),
	}
}

func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

func (lc *LogContext) WithFileID(fileID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.FileID = fileID
	}
	return clone
}

func (lc *LogContext) WithRequestID(requestID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.RequestID = requestID
	}
	return clone
}

func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}

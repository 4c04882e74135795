// Package instrument wraps a driver.FileStorage with metrics and tracing,
// the same "pass nil for zero overhead, pass a real collector to
// instrument" shape the teacher uses for its content stores, generalized
// to depot's single driver.FileStorage interface instead of a
// store-specific metrics struct per backend.
package instrument

import (
	"context"
	"time"

	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/metrics"
	"github.com/depotgo/depot/pkg/telemetry"
)

// Wrap returns store unchanged if neither metrics nor tracing is enabled,
// so an embedder that enables neither pays zero overhead (no interface
// indirection, no allocations) per call.
func Wrap(storeName string, store driver.FileStorage) driver.FileStorage {
	if !metrics.IsEnabled() && !telemetry.IsEnabled() {
		return store
	}
	return &instrumented{name: storeName, next: store}
}

type instrumented struct {
	name string
	next driver.FileStorage
}

func (s *instrumented) observe(ctx context.Context, op, span string, start time.Time, err error) {
	metrics.GetRecorder().ObserveDriverOp(s.name, op, time.Since(start), err)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
}

func (s *instrumented) Create(ctx context.Context, content any, filename, contentType string) (string, error) {
	ctx, span := telemetry.StartDriverSpan(ctx, telemetry.SpanDriverCreate, s.name, telemetry.Filename(filename))
	defer span.End()
	start := time.Now()
	id, err := s.next.Create(ctx, content, filename, contentType)
	s.observe(ctx, "create", telemetry.SpanDriverCreate, start, err)
	if err == nil {
		if n := contentLength(content); n >= 0 {
			metrics.GetRecorder().RecordDriverBytes(s.name, "write", n)
			telemetry.SetAttributes(ctx, telemetry.BytesTransferred(n))
		}
	}
	return id, err
}

// contentLength returns the byte length of content when it's a type whose
// size is known up front, or -1 when it isn't (e.g. a streaming io.Reader).
func contentLength(content any) int64 {
	switch v := content.(type) {
	case []byte:
		return int64(len(v))
	case string:
		return int64(len(v))
	default:
		return -1
	}
}

func (s *instrumented) Get(ctx context.Context, fileID string) (driver.StoredFile, error) {
	ctx, span := telemetry.StartDriverSpan(ctx, telemetry.SpanDriverGet, s.name, telemetry.FileID(fileID))
	defer span.End()
	start := time.Now()
	f, err := s.next.Get(ctx, fileID)
	s.observe(ctx, "get", telemetry.SpanDriverGet, start, err)
	if err == nil && f != nil {
		n := f.ContentLength()
		metrics.GetRecorder().RecordDriverBytes(s.name, "read", n)
		telemetry.SetAttributes(ctx, telemetry.BytesTransferred(n))
	}
	return f, err
}

func (s *instrumented) Replace(ctx context.Context, fileID string, content any, filename, contentType string) (string, error) {
	ctx, span := telemetry.StartDriverSpan(ctx, telemetry.SpanDriverReplace, s.name, telemetry.FileID(fileID))
	defer span.End()
	start := time.Now()
	id, err := s.next.Replace(ctx, fileID, content, filename, contentType)
	s.observe(ctx, "replace", telemetry.SpanDriverReplace, start, err)
	if err == nil {
		if n := contentLength(content); n >= 0 {
			metrics.GetRecorder().RecordDriverBytes(s.name, "write", n)
			telemetry.SetAttributes(ctx, telemetry.BytesTransferred(n))
		}
	}
	return id, err
}

func (s *instrumented) Delete(ctx context.Context, fileID string) error {
	ctx, span := telemetry.StartDriverSpan(ctx, telemetry.SpanDriverDelete, s.name, telemetry.FileID(fileID))
	defer span.End()
	start := time.Now()
	err := s.next.Delete(ctx, fileID)
	s.observe(ctx, "delete", telemetry.SpanDriverDelete, start, err)
	return err
}

func (s *instrumented) Exists(ctx context.Context, fileID string) (bool, error) {
	ctx, span := telemetry.StartDriverSpan(ctx, telemetry.SpanDriverExists, s.name, telemetry.FileID(fileID))
	defer span.End()
	start := time.Now()
	ok, err := s.next.Exists(ctx, fileID)
	s.observe(ctx, "exists", telemetry.SpanDriverExists, start, err)
	return ok, err
}

func (s *instrumented) List(ctx context.Context) ([]string, error) {
	ctx, span := telemetry.StartDriverSpan(ctx, telemetry.SpanDriverList, s.name)
	defer span.End()
	start := time.Now()
	ids, err := s.next.List(ctx)
	s.observe(ctx, "list", telemetry.SpanDriverList, start, err)
	return ids, err
}

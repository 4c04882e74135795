package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys scoped to storage-driver and HTTP-serving operations. The
// teacher's tracer.go carries NFS/SMB/RPC/Kerberos attribute families
// alongside these; none of that applies to a blob store, so only the
// protocol-agnostic and storage-backend groups survive here.
const (
	AttrOperation        = "fs.operation"
	AttrStoreName        = "store.name"
	AttrStoreType        = "store.type"
	AttrFileID           = "content.id"
	AttrFilename         = "fs.filename"
	AttrBytesTransferred = "fs.bytes_transferred"
	AttrBucket           = "storage.bucket"
	AttrKey              = "storage.key"
	AttrRegion           = "storage.region"
	AttrStatus           = "fs.status"
)

const (
	SpanDriverCreate  = "driver.create"
	SpanDriverGet     = "driver.get"
	SpanDriverReplace = "driver.replace"
	SpanDriverDelete  = "driver.delete"
	SpanDriverExists  = "driver.exists"
	SpanDriverList    = "driver.list"
	SpanHTTPServe     = "http.serve"
)

func Operation(op string) attribute.KeyValue   { return attribute.String(AttrOperation, op) }
func StoreName(name string) attribute.KeyValue { return attribute.String(AttrStoreName, name) }
func StoreType(t string) attribute.KeyValue    { return attribute.String(AttrStoreType, t) }
func FileID(id string) attribute.KeyValue      { return attribute.String(AttrFileID, id) }
func Filename(name string) attribute.KeyValue  { return attribute.String(AttrFilename, name) }
func BytesTransferred(n int64) attribute.KeyValue {
	return attribute.Int64(AttrBytesTransferred, n)
}
func Bucket(name string) attribute.KeyValue    { return attribute.String(AttrBucket, name) }
func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }
func Region(region string) attribute.KeyValue  { return attribute.String(AttrRegion, region) }
func Status(status int) attribute.KeyValue     { return attribute.Int(AttrStatus, status) }

// StartDriverSpan starts a span for a driver operation (create, get,
// replace, delete, exists, list) against a named store.
func StartDriverSpan(ctx context.Context, spanName, storeName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{StoreName(storeName)}, attrs...)
	return StartSpan(ctx, spanName, trace.WithAttributes(allAttrs...))
}

// StartHTTPSpan starts a span for a serving-layer request.
func StartHTTPSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanHTTPServe, trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	))
}

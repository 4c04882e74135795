package httpserve

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/driver/local"
	"github.com/depotgo/depot/pkg/driver/memory"
	"github.com/depotgo/depot/pkg/metrics"
	"github.com/depotgo/depot/pkg/registry"
)

func newTestHandler(t *testing.T) (*Handler, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))
	h, err := New("/depot", reg, nil, time.Hour)
	require.NoError(t, err)
	return h, reg
}

func TestNonMatchingMethodForwardsToNext(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h, err := New("/depot", reg, next, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/depot/default/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, called)
}

func TestOutsideMountpointForwardsToNext(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))

	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })
	h, err := New("/depot", reg, next, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/other/default/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, called)
}

func TestShortPathIs404(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/depot/default", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownStoreIs404(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/depot/nosuchstore/abc", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingFileIs404(t *testing.T) {
	h, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/depot/default/nonexistent", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServesFileWithHeaders(t *testing.T) {
	ctx := context.Background()
	h, reg := newTestHandler(t)
	store, err := reg.Get("default")
	require.NoError(t, err)

	id, err := store.Create(ctx, []byte("hello world"), "hello.txt", "text/plain")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	require.Equal(t, "11", rec.Header().Get("Content-Length"))
	require.Regexp(t, `^"\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}-11"$`, rec.Header().Get("ETag"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), `filename="hello.txt"`)
	require.Equal(t, "hello world", rec.Body.String())
}

func TestHeadOmitsBody(t *testing.T) {
	ctx := context.Background()
	h, reg := newTestHandler(t)
	store, err := reg.Get("default")
	require.NoError(t, err)

	id, err := store.Create(ctx, []byte("hello world"), "hello.txt", "text/plain")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodHead, "/depot/default/"+id, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Body.String())
}

func TestIfNoneMatchReturns304(t *testing.T) {
	ctx := context.Background()
	h, reg := newTestHandler(t)
	store, err := reg.Get("default")
	require.NoError(t, err)

	id, err := store.Create(ctx, []byte("hello world"), "hello.txt", "text/plain")
	require.NoError(t, err)

	req1 := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req1)
	etag := rec1.Header().Get("ETag")

	req2 := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	req2.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)

	require.Equal(t, http.StatusNotModified, rec2.Code)
}

func TestMalformedIfModifiedSinceIs400(t *testing.T) {
	ctx := context.Background()
	h, reg := newTestHandler(t)
	store, err := reg.Get("default")
	require.NoError(t, err)

	id, err := store.Create(ctx, []byte("hello world"), "hello.txt", "text/plain")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	req.Header.Set("If-Modified-Since", "not-a-date")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIfModifiedSinceInFutureReturns304(t *testing.T) {
	ctx := context.Background()
	h, reg := newTestHandler(t)
	store, err := reg.Get("default")
	require.NoError(t, err)

	id, err := store.Create(ctx, []byte("hello world"), "hello.txt", "text/plain")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	req.Header.Set("If-Modified-Since", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotModified, rec.Code)
}

func TestLocalDriverHasNoPublicURLAndServesDirectly(t *testing.T) {
	ctx := context.Background()
	reg := registry.New()
	dir := t.TempDir()
	store, err := local.New(local.Config{StoragePath: dir})
	require.NoError(t, err)
	require.NoError(t, reg.Configure("default", store))

	h, err := New("/depot", reg, nil, time.Hour)
	require.NoError(t, err)

	id, err := store.Create(ctx, []byte("content"), "f.txt", "text/plain")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

// publicURLStore is a minimal driver.FileStorage stub exercising the
// 301-redirect path for drivers that expose a public URL (S3/GCS in
// public-read mode), without needing live cloud credentials in tests.
type publicURLStore struct{ url string }

func (s *publicURLStore) Create(context.Context, any, string, string) (string, error) {
	return "fixed-id", nil
}
func (s *publicURLStore) Get(context.Context, string) (driver.StoredFile, error) {
	return &publicURLFile{url: s.url}, nil
}
func (s *publicURLStore) Replace(context.Context, string, any, string, string) (string, error) {
	return "", nil
}
func (s *publicURLStore) Delete(context.Context, string) error         { return nil }
func (s *publicURLStore) Exists(context.Context, string) (bool, error) { return true, nil }
func (s *publicURLStore) List(context.Context) ([]string, error)       { return nil, nil }

type publicURLFile struct{ url string }

func (f *publicURLFile) Read(p []byte) (int, error) { return 0, io.EOF }
func (f *publicURLFile) Close() error               { return nil }
func (f *publicURLFile) FileID() string             { return "fixed-id" }
func (f *publicURLFile) Filename() string            { return "f.txt" }
func (f *publicURLFile) ContentType() string         { return "text/plain" }
func (f *publicURLFile) ContentLength() int64        { return 0 }
func (f *publicURLFile) LastModified() time.Time     { return time.Now() }
func (f *publicURLFile) PublicURL() string           { return f.url }

func TestPublicURLRedirects(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Configure("default", &publicURLStore{url: "https://cdn.example.com/f.txt"}))

	h, err := New("/depot", reg, nil, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/fixed-id", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusMovedPermanently, rec.Code)
	require.Equal(t, "https://cdn.example.com/f.txt", rec.Header().Get("Location"))
}

func TestServeHTTPRecordsMetricsForBlobRequests(t *testing.T) {
	metrics.Init()
	t.Cleanup(func() { metrics.Init() })

	h, reg := newTestHandler(t)
	store, err := reg.Get("default")
	require.NoError(t, err)
	id, err := store.Create(context.Background(), []byte("hi"), "a.txt", "text/plain")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/"+id, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	count, err := testutil.GatherAndCount(metrics.GetRegistry(), "depot_http_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestServeHTTPRecordsMetricsForNotFound(t *testing.T) {
	metrics.Init()
	t.Cleanup(func() { metrics.Init() })

	h, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/depot/default/missing", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)

	count, err := testutil.GatherAndCount(metrics.GetRegistry(), "depot_http_requests_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestGenerateETagMatchesTimestampDashLengthFormat(t *testing.T) {
	lastModified := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, `"2024-01-01 00:00:00-5"`, generateETag(lastModified, 5))
}

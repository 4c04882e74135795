// Package httpserve implements the HTTP serving layer: a handler mounted
// at a configurable path prefix that resolves "{store}/{file_id}" paths
// against a registry, streams the blob with ETag/conditional-request
// handling, and redirects to a driver's public URL when one is available.
// It is a straight reimplementation of the source's FileServeApp and
// DepotMiddleware as a single net/http.Handler.
package httpserve

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/driver"
	"github.com/depotgo/depot/pkg/metrics"
	"github.com/depotgo/depot/pkg/telemetry"
)

const defaultChunkSize = 256 * 1024

// timeLayout is the second-precision, zone-free format every driver uses to
// render last_modified, matching the ground truth's utils.timestamp().
const timeLayout = "2006-01-02 15:04:05"

const notFoundBody = `<html>
 <head>
  <title>404 Not Found</title>
 </head>
 <body>
  <h1>404 Not Found</h1>
  File Not Found
 </body>
</html>`

const badRequestBody = `<html>
 <head>
  <title>400 Bad Request</title>
 </head>
 <body>
  <h1>400 Bad Request</h1>
  ETag or If-Modified-Since headers were malformed in request
 </body>
</html>`

// Resolver looks a store up by name. Satisfied by *registry.Registry.
type Resolver interface {
	Get(name string) (driver.FileStorage, error)
}

// Handler serves blobs mounted under a path prefix, forwarding every other
// request to Next unchanged.
type Handler struct {
	Mountpoint  string
	Registry    Resolver
	Next        http.Handler
	CacheMaxAge time.Duration
	ChunkSize   int
}

// New builds a Handler. mountpoint must begin with "/"; next is the host
// application handler invoked for requests this handler doesn't own (any
// method other than GET/HEAD, or a path outside mountpoint). next may be
// nil, in which case unmatched requests get a 404 from http.NotFoundHandler.
func New(mountpoint string, registry Resolver, next http.Handler, cacheMaxAge time.Duration) (*Handler, error) {
	if !strings.HasPrefix(mountpoint, "/") {
		return nil, fmt.Errorf("%w: mountpoint must start with \"/\", got %q", driver.ErrConfiguration, mountpoint)
	}
	if registry == nil {
		return nil, fmt.Errorf("%w: registry is required", driver.ErrConfiguration)
	}
	if next == nil {
		next = http.NotFoundHandler()
	}
	if cacheMaxAge <= 0 {
		cacheMaxAge = 7 * 24 * time.Hour
	}
	return &Handler{
		Mountpoint:  strings.TrimSuffix(mountpoint, "/"),
		Registry:    registry,
		Next:        next,
		CacheMaxAge: cacheMaxAge,
		ChunkSize:   defaultChunkSize,
	}, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if (r.Method != http.MethodGet && r.Method != http.MethodHead) || !strings.HasPrefix(r.URL.Path, h.Mountpoint) {
		h.Next.ServeHTTP(w, r)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, h.Mountpoint)
	rest = strings.TrimPrefix(rest, "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		writeNotFound(w)
		return
	}
	storeName, fileID := parts[0], parts[1]

	ctx, span := telemetry.StartHTTPSpan(r.Context(), r.Method, r.URL.Path)
	defer span.End()
	r = r.WithContext(ctx)

	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		telemetry.SetAttributes(ctx, telemetry.StoreName(storeName), telemetry.Status(sw.status))
		metrics.GetRecorder().ObserveHTTPServe(storeName, sw.status, time.Since(start))
	}()
	w = sw

	store, err := h.Registry.Get(storeName)
	if err != nil {
		writeNotFound(w)
		return
	}

	f, err := store.Get(r.Context(), fileID)
	if err != nil {
		if errors.Is(err, driver.ErrNotFound) || errors.Is(err, driver.ErrInvalidID) {
			writeNotFound(w)
			return
		}
		logger.ErrorCtx(r.Context(), "httpserve: backend error", logger.StoreName(storeName), logger.FileID(fileID), logger.Err(err))
		http.Error(w, "503 Service Unavailable", http.StatusServiceUnavailable)
		return
	}
	defer f.Close()

	if publicURL := f.PublicURL(); publicURL != "" {
		write301(w, publicURL)
		return
	}

	h.serveFile(w, r, f)
}

// statusWriter captures the status code written so it can be reported to
// metrics after the handler returns.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, f driver.StoredFile) {
	etag := generateETag(f.LastModified(), f.ContentLength())
	chunkSize := h.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	header := w.Header()
	header.Set("ETag", etag)
	header.Set("Cache-Control", fmt.Sprintf("max-age=%d, public", int(h.CacheMaxAge.Seconds())))

	notModified, badRequest := conditionalStatus(r, etag, f.LastModified())
	if badRequest {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, badRequestBody)
		return
	}
	if notModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	header.Set("Expires", time.Now().Add(h.CacheMaxAge).UTC().Format(http.TimeFormat))
	header.Set("Content-Type", f.ContentType())
	header.Set("Content-Length", fmt.Sprintf("%d", f.ContentLength()))
	header.Set("Last-Modified", f.LastModified().UTC().Format(http.TimeFormat))
	header.Set("Content-Disposition", contentDisposition("inline", f.Filename()))
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(w, f, buf); err != nil {
		logger.WarnCtx(r.Context(), "httpserve: error streaming body", logger.FileID(f.FileID()), logger.Err(err))
	}
}

// conditionalStatus evaluates If-Modified-Since and If-None-Match against
// the file's current etag/last-modified. A malformed If-Modified-Since is
// reported as badRequest, matching the source's parse-failure-is-400
// behavior; If-None-Match has no such failure mode since it's a plain
// string comparison.
func conditionalStatus(r *http.Request, etag string, lastModified time.Time) (notModified, badRequest bool) {
	if ims := r.Header.Get("If-Modified-Since"); ims != "" {
		parsed, err := http.ParseTime(ims)
		if err != nil {
			return false, true
		}
		if !lastModified.IsZero() && !lastModified.After(parsed) {
			notModified = true
		}
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		notModified = true
	}
	return notModified, false
}

func generateETag(lastModified time.Time, contentLength int64) string {
	return fmt.Sprintf(`"%s-%d"`, lastModified.UTC().Format(timeLayout), contentLength)
}

// contentDisposition renders an RFC 6266 value with a sanitized ascii
// filename plus a percent-encoded filename* fallback, matching the
// storage drivers' own header construction.
func contentDisposition(disposition, filename string) string {
	return fmt.Sprintf(`%s; filename="%s"; filename*=utf-8''%s`, disposition, asciiFallback(filename), url.QueryEscape(filename))
}

func asciiFallback(name string) string {
	out := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x80 && c != '"' && c != '\\' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
	io.WriteString(w, notFoundBody)
}

func write301(w http.ResponseWriter, location string) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Location", location)
	w.WriteHeader(http.StatusMovedPermanently)
	fmt.Fprintf(w, "<html>\n <head>\n  <title>301 Moved Permanently</title>\n </head>\n <body>\n  <h1>301 Moved Permanently</h1>\n  File you are looking for is available at <a href=\"%s\">%s</a>\n </body>\n</html>", location, location)
}

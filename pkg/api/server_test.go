package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depotgo/depot/pkg/driver/memory"
	"github.com/depotgo/depot/pkg/httpserve"
	"github.com/depotgo/depot/pkg/registry"
)

func newTestRouter(t *testing.T) (http.Handler, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))
	return NewRouter(reg), reg
}

func TestLivenessAlwaysHealthy(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadinessUnhealthyWithEmptyRegistry(t *testing.T) {
	router := NewRouter(registry.New())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadinessHealthyWithConfiguredStore(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStoresListsConfiguredStoreNames(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health/stores", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "default")
}

func TestRootRedirectsToHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
	assert.Equal(t, "/health", rec.Header().Get("Location"))
}

func TestNewServerMountsBlobHandlerBehindRouter(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))

	srv, err := NewServer(Config{}, reg, "/depot", 0)
	require.NoError(t, err)
	assert.Equal(t, 8080, srv.Port())

	h, ok := srv.server.Handler.(*httpserve.Handler)
	require.True(t, ok)
	assert.Equal(t, "/depot", h.Mountpoint)
	assert.NotNil(t, h.Next)
}

func TestNewServerRejectsBadMountpoint(t *testing.T) {
	reg := registry.New()
	require.NoError(t, reg.Configure("default", memory.New()))

	_, err := NewServer(Config{}, reg, "nodoeslash", 0)
	assert.Error(t, err)
}

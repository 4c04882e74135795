package api

import (
	"net/http"

	"github.com/depotgo/depot/pkg/registry"
)

// HealthHandler exposes liveness/readiness/store-listing endpoints over
// the registry. driver.FileStorage has no Healthcheck method (drivers are
// thin backend adapters, not long-lived connections with their own health
// state), so Stores reports configuration, not live backend reachability.
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a health handler. registry may be nil, in which
// case readiness and store listing report unhealthy.
func NewHealthHandler(reg *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: reg}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{"service": "depot"}))
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}
	if h.registry.Count() == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no stores configured"))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"stores": h.registry.Count(),
	}))
}

// StoresResponse lists the registry's configured stores and aliases.
type StoresResponse struct {
	Default string            `json:"default,omitempty"`
	Stores  []string          `json:"stores"`
	Aliases map[string]string `json:"aliases"`
}

// Stores handles GET /health/stores.
func (h *HealthHandler) Stores(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	def, _ := h.registry.GetDefault()
	resp := StoresResponse{
		Default: def,
		Stores:  h.registry.Names(),
		Aliases: h.registry.Aliases(),
	}

	if len(resp.Stores) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponseWithData(resp))
		return
	}
	writeJSON(w, http.StatusOK, healthyResponse(resp))
}

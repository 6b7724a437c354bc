package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/iconidentify/vidembed/internal/repository"
)

var startTime = time.Now()

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	cache repository.StreamURLRepository
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cache repository.StreamURLRepository) *HealthHandler {
	return &HealthHandler{
		cache: cache,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Uptime    string      `json:"uptime,omitempty"`
	Cache     *CacheStats `json:"cache,omitempty"`
}

// CacheStats contains stream URL cache statistics.
type CacheStats struct {
	Entries int    `json:"entries"`
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if stats, err := h.cache.Stats(ctx); err == nil {
		resp.Cache = &CacheStats{
			Entries: stats.Entries,
			Hits:    stats.Hits,
			Misses:  stats.Misses,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

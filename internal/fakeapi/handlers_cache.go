package fakeapi

import (
	"net/http"

	"github.com/aussiebroadwan/backoffice/pkg/httpx"
	"github.com/aussiebroadwan/backoffice/pkg/slogx"
)

// CacheHandler serves the cache inspection endpoints.
type CacheHandler struct {
	Service *Service
}

// HandleList handles GET /cache?pattern=.
func (h *CacheHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")

	list, err := h.Service.ListCache(pattern)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "Invalid pattern")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    list,
	})
}

// HandleDelete handles DELETE /cache/{key}.
func (h *CacheHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	if err := h.Service.DeleteCache(key); err != nil {
		writeServiceError(w, err)
		return
	}
	slogx.FromContext(r.Context()).Info("cache key deleted", "key", key)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandleFlush handles DELETE /cache.
func (h *CacheHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	n := h.Service.FlushCache()
	slogx.FromContext(r.Context()).Info("cache flushed", "deleted", n)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]int{"deleted": n},
	})
}

package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/http/response"
	"github.com/yungbote/checklist-advisor/internal/platform/apierr"
	"github.com/yungbote/checklist-advisor/internal/services"
)

type CacheHandler struct {
	store services.CacheStore
}

func NewCacheHandler(store services.CacheStore) *CacheHandler {
	return &CacheHandler{store: store}
}

// GET /api/admin/cache/:kind/versions
func (h *CacheHandler) ListVersions(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	versions, err := h.store.ListVersionsWithStats(c.Request.Context(), kind)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"versions": versions})
}

// GET /api/admin/cache/:kind/stats[?version=]
func (h *CacheHandler) Stats(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	stats, err := h.store.Stats(c.Request.Context(), kind, strings.TrimSpace(c.Query("version")))
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, stats)
}

// GET /api/admin/cache/:kind/versions/:version/export
func (h *CacheHandler) Export(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	version := c.Param("version")
	payload, err := h.store.ExportVersion(c.Request.Context(), kind, version)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", version+".json"))
	response.RespondOK(c, payload)
}

// POST /api/admin/cache/:kind/import
func (h *CacheHandler) Import(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var payload types.ExportPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.RespondAPIError(c, apierr.BadRequest("invalid_payload", err))
		return
	}
	res, err := h.store.ImportVersion(c.Request.Context(), kind, &payload)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

// DELETE /api/admin/cache/:kind/versions/:version
func (h *CacheHandler) DeleteVersion(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	version := c.Param("version")
	if err := h.store.DeleteVersion(c.Request.Context(), kind, version); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": version})
}

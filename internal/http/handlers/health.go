package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/checklist-advisor/internal/llm"
)

type HealthHandler struct {
	provider llm.Provider
}

func NewHealthHandler(provider llm.Provider) *HealthHandler {
	return &HealthHandler{provider: provider}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	out := gin.H{"status": "ok"}
	if h.provider != nil {
		out["provider"] = h.provider.Name()
		out["provider_fallback"] = llm.IsFallback(h.provider)
	}
	c.JSON(http.StatusOK, out)
}

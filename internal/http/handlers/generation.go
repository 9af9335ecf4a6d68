package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/checklist-advisor/internal/http/response"
	"github.com/yungbote/checklist-advisor/internal/platform/apierr"
	"github.com/yungbote/checklist-advisor/internal/platform/logger"
	"github.com/yungbote/checklist-advisor/internal/realtime"
	"github.com/yungbote/checklist-advisor/internal/services"
)

type GenerationHandler struct {
	log *logger.Logger
	gen services.GenerationService
	hub *realtime.SSEHub
}

func NewGenerationHandler(log *logger.Logger, gen services.GenerationService, hub *realtime.SSEHub) *GenerationHandler {
	return &GenerationHandler{log: log.With("handler", "GenerationHandler"), gen: gen, hub: hub}
}

type triggerRequest struct {
	services.GenerationRequest
	// Wait holds the response until the run finishes.
	Wait bool `json:"wait"`
}

// POST /api/admin/generation/:kind
func (h *GenerationHandler) Trigger(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	var req triggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondAPIError(c, apierr.BadRequest("invalid_request", err))
		return
	}

	handle, err := h.gen.Start(c.Request.Context(), kind, req.GenerationRequest)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	if !req.Wait {
		c.JSON(http.StatusAccepted, handle)
		return
	}
	// A disconnecting caller stops waiting; the run itself keeps going.
	summary, err := handle.Wait(c.Request.Context())
	if err != nil {
		h.log.Info("trigger caller left before run finished", "kind", kind, "version", handle.Version)
		return
	}
	response.RespondOK(c, summary)
}

// POST /api/admin/generation/:kind/cancel
func (h *GenerationHandler) Cancel(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	if err := h.gen.Cancel(kind); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"kind": kind, "canceling": true})
}

// GET /api/admin/generation/:kind/progress
func (h *GenerationHandler) Progress(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	response.RespondOK(c, h.gen.Progress(kind))
}

// GET /api/admin/generation/:kind/progress/stream
func (h *GenerationHandler) ProgressStream(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	if h.hub == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "streaming_unavailable", errors.New("progress streaming is not configured"))
		return
	}

	client := h.hub.SubscribeFunc(realtime.GenerationChannel(string(kind)), func() []realtime.SSEMessage {
		return []realtime.SSEMessage{services.ProgressMessage(h.gen.Progress(kind))}
	})
	h.log.Debug("progress stream open", "kind", kind, "client_id", client.ID.String())

	h.hub.Stream(c.Writer, c.Request, client)

	h.hub.Unsubscribe(client)
	h.log.Debug("progress stream closed", "kind", kind, "client_id", client.ID.String())
}

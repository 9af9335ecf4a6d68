package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/checklist-advisor/internal/domain"
	"github.com/yungbote/checklist-advisor/internal/http/response"
	"github.com/yungbote/checklist-advisor/internal/services"
)

// kindParam reads :kind, writing a 404 envelope when it names no pipeline.
func kindParam(c *gin.Context) (types.Kind, bool) {
	raw := c.Param("kind")
	kind, ok := types.ParseKind(raw)
	if !ok {
		response.RespondAPIError(c, fmt.Errorf("%w: %q", services.ErrUnknownKind, raw))
		return "", false
	}
	return kind, true
}

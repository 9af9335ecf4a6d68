package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/checklist-advisor/internal/platform/apierr"
	"github.com/yungbote/checklist-advisor/internal/services"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondAPIError renders err with the status its classification maps to.
func RespondAPIError(c *gin.Context, err error) {
	ae := Classify(err)
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

var serviceErrors = apierr.Rules{
	{Target: services.ErrRunInProgress, Status: http.StatusConflict, Code: "run_in_progress"},
	{Target: services.ErrUnknownKind, Status: http.StatusNotFound, Code: "unknown_kind"},
	{Target: services.ErrNotFound, Status: http.StatusNotFound, Code: "not_found"},
	{Target: services.ErrConfiguration, Status: http.StatusBadRequest, Code: "configuration_error"},
	{Target: services.ErrInvalidPayload, Status: http.StatusBadRequest, Code: "invalid_payload"},
}

func Classify(err error) *apierr.Error {
	return serviceErrors.Classify(err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/checklist-advisor/internal/http/response"
	"github.com/yungbote/checklist-advisor/internal/services"
)

type ContentHandler struct {
	reader          services.ContentReader
	defaultLanguage string
}

func NewContentHandler(reader services.ContentReader, defaultLanguage string) *ContentHandler {
	if defaultLanguage == "" {
		defaultLanguage = "ja"
	}
	return &ContentHandler{reader: reader, defaultLanguage: defaultLanguage}
}

// GET /api/content/:kind/items/:itemId?lang=ja[&generate=1]
func (h *ContentHandler) GetItem(c *gin.Context) {
	kind, ok := kindParam(c)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(c.Param("itemId"))
	lang := strings.ToLower(strings.TrimSpace(c.DefaultQuery("lang", h.defaultLanguage)))

	var (
		res services.ContentResult
		err error
	)
	if truthy(c.Query("generate")) {
		res, err = h.reader.LookupOrGenerate(c.Request.Context(), kind, itemID, lang)
	} else {
		res, err = h.reader.Lookup(c.Request.Context(), kind, itemID, lang)
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, res)
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

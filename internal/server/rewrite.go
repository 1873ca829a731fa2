package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type rewriteRequest struct {
	OriginalText string `json:"original_text"`
	Tone         string `json:"tone"`
}

type rewriteResponse struct {
	RewrittenText string `json:"rewritten_text"`
}

func (s *Server) RewriteText(c *gin.Context) {
	var req rewriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if strings.TrimSpace(req.OriginalText) == "" {
		AbortWithError(c, newValidationError("original_text", "required", "original_text is required"))
		return
	}

	rewritten, err := s.rewriteSvc.Rewrite(c.Request.Context(), req.OriginalText, req.Tone)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, rewriteResponse{RewrittenText: rewritten})
}

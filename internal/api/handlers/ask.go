package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/retrieval"
	"github.com/your-org/homewatch/pkg/dto"
)

type AskHandler struct {
	engine *retrieval.Engine
}

func NewAskHandler(engine *retrieval.Engine) *AskHandler {
	return &AskHandler{engine: engine}
}

// Ask answers a natural-language question over the event store.
func (h *AskHandler) Ask(c *gin.Context) {
	var req dto.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	answer, err := h.engine.Ask(c.Request.Context(), req.Question)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.AskResponse{
		Answer:        answer.Answer,
		EvidenceCount: answer.EvidenceCount,
		HasImages:     answer.HasImages,
		Images:        answer.Images,
	})
}

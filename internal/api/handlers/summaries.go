package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/summary"
	"github.com/your-org/homewatch/pkg/dto"
)

type SummaryHandler struct {
	db         summary.Store
	summarizer *summary.Summarizer
}

func NewSummaryHandler(db summary.Store, summarizer *summary.Summarizer) *SummaryHandler {
	return &SummaryHandler{db: db, summarizer: summarizer}
}

// Get returns the stored daily summary for one date.
func (h *SummaryHandler) Get(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}

	s, err := h.db.GetDailySummary(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no summary for date"})
		return
	}

	c.JSON(http.StatusOK, dto.SummaryResponse{
		ID:          s.ID,
		Date:        s.SummaryDate.Format("2006-01-02"),
		Text:        s.SummaryText,
		TotalEvents: s.TotalEvents,
		UpdatedAt:   s.UpdatedAt.Format(time.RFC3339),
	})
}

// Generate runs the daily summarizer for one date. The force query
// parameter regenerates an existing summary.
func (h *SummaryHandler) Generate(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}
	force, _ := strconv.ParseBool(c.DefaultQuery("force", "false"))

	id, err := h.summarizer.SummarizeDay(c.Request.Context(), date, force)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if id == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "no events for date"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": id, "date": date.Format("2006-01-02")})
}

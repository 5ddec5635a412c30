package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

const keyframeURLExpiry = 1 * time.Hour

type EventHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
}

func NewEventHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *EventHandler {
	return &EventHandler{db: db, minio: minio}
}

// List queries events by date, time range, person and keyword.
func (h *EventHandler) List(c *gin.Context) {
	filter := storage.EventFilter{Keyword: c.Query("keyword")}

	if dateStr := c.Query("date"); dateStr != "" {
		d, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		filter.DateFrom, filter.DateTo = &d, &d
	} else {
		if fromStr := c.Query("from"); fromStr != "" {
			if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
				filter.DateFrom = &t
			}
		}
		if toStr := c.Query("to"); toStr != "" {
			if t, err := time.Parse(time.RFC3339, toStr); err == nil {
				filter.DateTo = &t
			}
		}
	}

	if pidStr := c.Query("person_id"); pidStr != "" {
		pid, err := strconv.ParseInt(pidStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person_id"})
			return
		}
		filter.PersonID = pid
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.db.QueryEvents(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.EventResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, h.eventResponse(c, ev, false))
	}
	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: len(resp)})
}

// Get returns one event with presigned keyframe URLs.
func (h *EventHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	c.JSON(http.StatusOK, h.eventResponse(c, *ev, true))
}

// Evidence returns presigned snapshot URLs for every appearance of the
// event that carries a stored keyframe.
func (h *EventHandler) Evidence(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	ev, err := h.db.GetEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
		return
	}

	urls := make([]string, 0, len(ev.Appearances))
	for _, ap := range ev.Appearances {
		if ap.KeyframeKey == "" || h.minio == nil {
			continue
		}
		url, err := h.minio.PresignedURL(c.Request.Context(), ap.KeyframeKey, keyframeURLExpiry)
		if err != nil {
			continue
		}
		urls = append(urls, url)
	}

	c.JSON(http.StatusOK, gin.H{"event_id": id, "images": urls, "total": len(urls)})
}

func (h *EventHandler) eventResponse(c *gin.Context, ev storage.EventWithAppearances, withURLs bool) dto.EventResponse {
	aps := make([]dto.AppearanceResponse, 0, len(ev.Appearances))
	for _, ap := range ev.Appearances {
		out := dto.AppearanceResponse{
			PersonID:    ap.PersonID,
			PersonName:  ap.PersonName,
			MatchMethod: ap.MatchMethod,
		}
		if withURLs && ap.KeyframeKey != "" && h.minio != nil {
			if url, err := h.minio.PresignedURL(c.Request.Context(), ap.KeyframeKey, keyframeURLExpiry); err == nil {
				out.KeyframeURL = url
			}
		}
		aps = append(aps, out)
	}

	return dto.EventResponse{
		ID:             ev.Event.ID,
		VideoFilename:  ev.Event.VideoFilename,
		StartTime:      ev.Event.StartTime.Format(time.RFC3339),
		CameraLocation: ev.Event.CameraLocation,
		Description:    ev.Event.LLMDescription,
		Appearances:    aps,
	}
}

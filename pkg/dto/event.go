package dto

import "github.com/google/uuid"

type AppearanceResponse struct {
	PersonID    int64  `json:"person_id"`
	PersonName  string `json:"person_name"`
	MatchMethod string `json:"match_method"`
	KeyframeURL string `json:"keyframe_url,omitempty"`
}

type EventResponse struct {
	ID             uuid.UUID            `json:"id"`
	VideoFilename  string               `json:"video_filename,omitempty"`
	StartTime      string               `json:"start_time"`
	CameraLocation string               `json:"camera_location"`
	Description    string               `json:"description"`
	Appearances    []AppearanceResponse `json:"appearances"`
}

type EventListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

type SummaryResponse struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Text        string `json:"text"`
	TotalEvents int    `json:"total_events"`
	UpdatedAt   string `json:"updated_at"`
}

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type AskResponse struct {
	Answer        string   `json:"answer"`
	EvidenceCount int      `json:"evidence_count"`
	HasImages     bool     `json:"has_images"`
	Images        []string `json:"images,omitempty"`
}

package models

import (
	"time"

	"github.com/google/uuid"
)

// PersonActivity aggregates one identity's presence within an event.
type PersonActivity struct {
	Label      string          `json:"label"`
	FirstSeen  time.Time       `json:"first_seen"`
	LastSeen   time.Time       `json:"last_seen"`
	Cameras    map[string]bool `json:"cameras"`
	Detections int             `json:"detections"`
}

// Keyframe is the representative detection chosen per identity per event.
type Keyframe struct {
	Detection Detection `json:"detection"`
	ClipIndex int       `json:"clip_index"`
	Score     float64   `json:"score"`
}

// Event is a maximal ordered group of clips connected by the fusion policy.
type Event struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // seconds
	Cameras   []string  `json:"cameras"`

	// People maps identity keys (person_<id> or stranger buckets) to
	// their per-event aggregate.
	People map[string]*PersonActivity `json:"people"`

	Clips     []ClipResult        `json:"clips"`
	Keyframes map[string]Keyframe `json:"keyframes"`

	Summary string `json:"summary,omitempty"`

	// RoleOverrides holds behaviour-inferred labels keyed by identity
	// key, set by the role classifier after summary validation.
	RoleOverrides map[string]string `json:"role_overrides,omitempty"`
}

// StoredEvent is the persisted event row.
type StoredEvent struct {
	ID             uuid.UUID `json:"id" db:"id"`
	VideoFilename  string    `json:"video_filename" db:"video_filename"`
	StartTime      time.Time `json:"start_time" db:"start_time"`
	CameraLocation string    `json:"camera_location" db:"camera_location"`
	LLMDescription string    `json:"llm_description" db:"llm_description"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// StoredAppearance links one event, one person and the representative
// body vector for that person in the event.
type StoredAppearance struct {
	ID            int64     `json:"id" db:"id"`
	EventID       uuid.UUID `json:"event_id" db:"event_id"`
	PersonID      int64     `json:"person_id" db:"person_id"`
	PersonName    string    `json:"person_name,omitempty" db:"-"`
	MatchMethod   string    `json:"match_method" db:"match_method"`
	BodyEmbedding []float32 `json:"-" db:"body_embedding"`
	KeyframeKey   string    `json:"keyframe_key,omitempty" db:"keyframe_key"`
}

// DailySummary is one narrative record per calendar date.
type DailySummary struct {
	ID          int64     `json:"id" db:"id"`
	SummaryDate time.Time `json:"summary_date" db:"summary_date"`
	SummaryText string    `json:"summary_text" db:"summary_text"`
	TotalEvents int       `json:"total_events" db:"total_events"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// BatchJob is the message published to NATS for worker processing:
// one batch of clips to run through the full pipeline.
type BatchJob struct {
	BatchID uuid.UUID `json:"batch_id"`
	Clips   []Clip    `json:"clips"`
}

// EventNotice is published after an event transaction commits, for the
// API to broadcast over WebSocket.
type EventNotice struct {
	EventID        uuid.UUID `json:"event_id"`
	StartTime      time.Time `json:"start_time"`
	CameraLocation string    `json:"camera_location"`
	People         []string  `json:"people"`
	Summary        string    `json:"summary"`
}

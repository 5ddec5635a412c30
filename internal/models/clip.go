package models

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// Clip is one short video file from one camera with a wall-clock start.
type Clip struct {
	VideoPath string    `json:"video_path"`
	Camera    string    `json:"camera"`
	StartTime time.Time `json:"start_time"`
	Duration  float64   `json:"duration"` // seconds, filled by the scanner
}

// Detection is one person bounding box in one sampled frame,
// carrying embeddings and the resolved identity.
type Detection struct {
	FrameIndex int        `json:"frame_index"`
	BBox       [4]float32 `json:"bbox"` // x1, y1, x2, y2
	Confidence float32    `json:"confidence"`
	TrackID    int        `json:"track_id,omitempty"`

	FaceEmbedding []float32 `json:"-"`
	BodyEmbedding []float32 `json:"-"`

	PersonID   int64   `json:"person_id,omitempty"` // 0 when unresolved
	PersonName string  `json:"person_name,omitempty"`
	Label      string  `json:"label"`  // family, suspected_family, stranger, ...
	Method     string  `json:"method"` // face, body, soft_body, new, refined_*
	MatchScore float32 `json:"match_score,omitempty"`
}

// BBoxArea returns the bounding box area in square pixels.
func (d Detection) BBoxArea() float32 {
	w := d.BBox[2] - d.BBox[0]
	h := d.BBox[3] - d.BBox[1]
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// ClipResult is the scanner output for one clip: per-frame ordered
// detection lists plus frame geometry for downstream scoring.
type ClipResult struct {
	Clip          Clip          `json:"clip"`
	Frames        [][]Detection `json:"frames"`
	FrameW        int           `json:"frame_w"`
	FrameH        int           `json:"frame_h"`
	SampledFrames int           `json:"sampled_frames"`
}

// PersonKeys returns the distinct identity keys present in the result.
// Known persons key as person_<id>; strangers bucket by body hash.
func (c *ClipResult) PersonKeys() map[string]bool {
	keys := make(map[string]bool)
	for _, frame := range c.Frames {
		for _, det := range frame {
			keys[DetectionKey(det)] = true
		}
	}
	return keys
}

// DetectionKey returns the grouping key for a detection: a stable
// person key for resolved identities, a stranger bucket key otherwise.
func DetectionKey(det Detection) string {
	if det.PersonID > 0 {
		return KnownPersonKey(det.PersonID)
	}
	return StrangerBucketKey(det.BodyEmbedding)
}

// KnownPersonKey builds the identity key for a resolved person id.
func KnownPersonKey(id int64) string {
	return fmt.Sprintf("person_%d", id)
}

// IsStrangerKey reports whether an identity key denotes a stranger bucket.
func IsStrangerKey(key string) bool {
	return strings.HasPrefix(key, "stranger_")
}

// StrangerBucketKey buckets an unresolved detection by a stable hash of
// the first 20 body-embedding components. The same physical stranger
// produces near-identical embeddings within a run, so the truncated
// hash is stable per person. Detections without a body embedding fall
// into the shared unknown bucket; the fusion aggregator splits those by
// an incrementing index.
func StrangerBucketKey(body []float32) string {
	if len(body) < 20 {
		return "stranger_unknown"
	}
	h := md5.New()
	for _, v := range body[:20] {
		fmt.Fprintf(h, "%.4f,", v)
	}
	return "stranger_" + hex.EncodeToString(h.Sum(nil))[:8]
}

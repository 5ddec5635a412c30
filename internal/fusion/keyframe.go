package fusion

import (
	"math"

	"github.com/your-org/homewatch/internal/models"
)

// KeyframeScore ranks a detection as a representative for its person.
// Face-confirmed detections dominate, then body-confirmed ones; within
// a tier prefer confident, large and centered boxes.
func KeyframeScore(det models.Detection, frameW, frameH int) float64 {
	score := 0.0
	switch det.Method {
	case models.MethodFace:
		score += 10000
	case models.MethodBody:
		score += 5000
	}
	score += 100 * float64(det.Confidence)
	score += float64(det.BBoxArea())

	cx := float64(det.BBox[0]+det.BBox[2]) / 2
	cy := float64(det.BBox[1]+det.BBox[3]) / 2
	dx := cx - float64(frameW)/2
	dy := cy - float64(frameH)/2
	score -= 0.5 * math.Hypot(dx, dy)
	return score
}

// betterKeyframe reports whether candidate should replace current.
// Higher score wins; equal scores keep the earliest frame.
func betterKeyframe(candidate models.Keyframe, current *models.Keyframe) bool {
	if current == nil {
		return true
	}
	if candidate.Score != current.Score {
		return candidate.Score > current.Score
	}
	if candidate.ClipIndex != current.ClipIndex {
		return candidate.ClipIndex < current.ClipIndex
	}
	return candidate.Detection.FrameIndex < current.Detection.FrameIndex
}

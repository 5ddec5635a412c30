package persist

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/models"
)

var eventStart = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func TestStrangerName(t *testing.T) {
	name := StrangerName(eventStart, "stranger_ab12cd34")
	assert.Equal(t, "Stranger_20250901_090000_ab12cd34", name)
}

func TestSortedKeysOrdersKnownPersonsFirst(t *testing.T) {
	keys := sortedKeys(map[string]models.Keyframe{
		"stranger_ff001122": {},
		"person_10":         {},
		"person_2":          {},
		"stranger_aa334455": {},
	})
	assert.Equal(t, []string{"person_2", "person_10", "stranger_aa334455", "stranger_ff001122"}, keys)
}

func TestFirstClipName(t *testing.T) {
	ev := &models.Event{Clips: []models.ClipResult{{
		Clip: models.Clip{VideoPath: "/data/videos/doorbell/2025-09-01_0900.mp4"},
	}}}
	assert.Equal(t, "2025-09-01_0900.mp4", firstClipName(ev))
	assert.Equal(t, "", firstClipName(&models.Event{}))
}

func TestKeyframeKeyLayout(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Equal(t,
		"keyframes/6ba7b810-9dad-11d1-80b4-00c04fd430c8/person_1.jpg",
		keyframeKey(id, "person_1"))
}

func TestRepresentativePrefersKeyframeWithBody(t *testing.T) {
	det := models.Detection{
		PersonID:      1,
		Method:        models.MethodFace,
		BodyEmbedding: []float32{0.1, 0.2},
	}
	ev := &models.Event{
		Keyframes: map[string]models.Keyframe{
			"person_1": {Detection: det, Score: 10100},
		},
	}
	rep := representative(ev, detectionGroup{key: "person_1", personID: 1})
	require.NotNil(t, rep)
	assert.Equal(t, det.BodyEmbedding, rep.Detection.BodyEmbedding)
}

func TestRepresentativeFallsBackToBodyCarryingDetection(t *testing.T) {
	faceOnly := models.Detection{
		PersonID: 1, Method: models.MethodFace, Confidence: 0.95,
		BBox: [4]float32{100, 100, 200, 300},
	}
	withBody := models.Detection{
		PersonID: 1, Method: models.MethodBody, Confidence: 0.7,
		BBox:          [4]float32{100, 100, 200, 300},
		BodyEmbedding: []float32{0.3, 0.4},
	}
	ev := &models.Event{
		Keyframes: map[string]models.Keyframe{
			"person_1": {Detection: faceOnly, Score: 10195},
		},
		Clips: []models.ClipResult{{
			Clip:   models.Clip{VideoPath: "a.mp4", Camera: "doorbell", StartTime: eventStart},
			Frames: [][]models.Detection{{faceOnly, withBody}},
			FrameW: 1920, FrameH: 1080,
		}},
	}

	rep := representative(ev, detectionGroup{key: "person_1", personID: 1})
	require.NotNil(t, rep)
	assert.Equal(t, withBody.BodyEmbedding, rep.Detection.BodyEmbedding)
}

func TestRepresentativeNilWhenNoBodyAnywhere(t *testing.T) {
	faceOnly := models.Detection{
		PersonID: 1, Method: models.MethodFace, Confidence: 0.95,
		BBox: [4]float32{100, 100, 200, 300},
	}
	ev := &models.Event{
		Keyframes: map[string]models.Keyframe{
			"person_1": {Detection: faceOnly, Score: 10195},
		},
		Clips: []models.ClipResult{{
			Clip:   models.Clip{VideoPath: "a.mp4", Camera: "doorbell", StartTime: eventStart},
			Frames: [][]models.Detection{{faceOnly}},
			FrameW: 1920, FrameH: 1080,
		}},
	}

	rep := representative(ev, detectionGroup{key: "person_1", personID: 1})
	assert.Nil(t, rep)
}

func TestGroupDetectionsOnePerIdentity(t *testing.T) {
	ev := &models.Event{
		Keyframes: map[string]models.Keyframe{
			"person_1":          {Detection: models.Detection{PersonID: 1}},
			"stranger_ab12cd34": {Detection: models.Detection{}},
		},
	}
	groups := groupDetections(ev)
	require.Len(t, groups, 2)
	assert.Equal(t, "person_1", groups[0].key)
	assert.Equal(t, int64(1), groups[0].personID)
	assert.Equal(t, "stranger_ab12cd34", groups[1].key)
	assert.Zero(t, groups[1].personID)
}

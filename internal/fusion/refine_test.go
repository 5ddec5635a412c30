package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/models"
)

func suspectedDetection(personID int64) models.Detection {
	return models.Detection{
		BBox:       [4]float32{100, 100, 200, 300},
		Confidence: 0.8,
		PersonID:   personID,
		PersonName: "mom",
		Label:      models.LabelSuspectedFamily,
		Method:     models.MethodSoftBody,
	}
}

func eventWithFrames(frames ...[]models.Detection) *models.Event {
	for fi := range frames {
		for di := range frames[fi] {
			frames[fi][di].FrameIndex = fi
		}
	}
	ev := &models.Event{
		Clips: []models.ClipResult{{
			Clip: models.Clip{
				VideoPath: "clip.mp4",
				Camera:    "indoor_living",
				StartTime: baseTime,
				Duration:  float64(len(frames)),
			},
			Frames: frames,
			FrameW: 1920, FrameH: 1080,
		}},
	}
	aggregate(ev)
	return ev
}

func TestRefinePromotesRepeatedSuspects(t *testing.T) {
	ev := eventWithFrames(
		[]models.Detection{suspectedDetection(3)},
		[]models.Detection{suspectedDetection(3)},
		[]models.Detection{suspectedDetection(3)},
	)

	Refine(ev)

	forEachDetection(ev, func(det *models.Detection) {
		assert.Equal(t, models.LabelFamily, det.Label)
		assert.Equal(t, models.MethodRefinedFromSuspected, det.Method)
	})
	act := ev.People[models.KnownPersonKey(3)]
	require.NotNil(t, act)
	assert.Equal(t, models.LabelFamily, act.Label)
}

func TestRefineKeepsTwoSuspectsUnpromoted(t *testing.T) {
	ev := eventWithFrames(
		[]models.Detection{suspectedDetection(3)},
		[]models.Detection{suspectedDetection(3)},
	)

	Refine(ev)

	forEachDetection(ev, func(det *models.Detection) {
		assert.Equal(t, models.LabelSuspectedFamily, det.Label)
		assert.Equal(t, models.MethodSoftBody, det.Method)
	})
}

func TestRefineSuspectsRepeatedStrangersNearFamily(t *testing.T) {
	family := models.Detection{
		BBox: [4]float32{10, 10, 50, 100}, Confidence: 0.9,
		PersonID: 1, PersonName: "dad",
		Label: models.LabelFamily, Method: models.MethodFace,
	}
	stranger := models.Detection{
		BBox: [4]float32{300, 100, 400, 350}, Confidence: 0.7,
		TrackID:       2,
		BodyEmbedding: strangerBody(0.4),
		Label:         models.LabelStranger, Method: models.MethodNew,
	}
	ev := eventWithFrames(
		[]models.Detection{family},
		[]models.Detection{stranger},
		[]models.Detection{stranger},
		[]models.Detection{stranger},
	)

	Refine(ev)

	relabeled := 0
	forEachDetection(ev, func(det *models.Detection) {
		if det.Method == models.MethodRefinedFromStranger {
			relabeled++
			assert.Equal(t, models.LabelSuspectedFamily, det.Label)
		}
	})
	assert.Equal(t, 3, relabeled)
}

func TestRefineIgnoresStrangersWithoutFamily(t *testing.T) {
	stranger := models.Detection{
		BBox: [4]float32{300, 100, 400, 350}, Confidence: 0.7,
		TrackID:       2,
		BodyEmbedding: strangerBody(0.4),
		Label:         models.LabelStranger, Method: models.MethodNew,
	}
	ev := eventWithFrames(
		[]models.Detection{stranger},
		[]models.Detection{stranger},
		[]models.Detection{stranger},
	)

	Refine(ev)

	forEachDetection(ev, func(det *models.Detection) {
		assert.Equal(t, models.LabelStranger, det.Label)
	})
}

func TestRefinePromotesSameFrameCompanions(t *testing.T) {
	family := models.Detection{
		BBox: [4]float32{10, 10, 50, 100}, Confidence: 0.9,
		PersonID: 1, Label: models.LabelFamily, Method: models.MethodFace,
	}
	companion := suspectedDetection(4)
	ev := eventWithFrames([]models.Detection{family, companion})

	Refine(ev)

	det := ev.Clips[0].Frames[0][1]
	assert.Equal(t, models.LabelFamily, det.Label)
	assert.Equal(t, models.MethodRefinedFromContext, det.Method)
}

func TestRefinePreservesStrangerSentinel(t *testing.T) {
	stranger := models.Detection{
		BBox: [4]float32{300, 100, 400, 350}, Confidence: 0.7,
		TrackID:       2,
		BodyEmbedding: strangerBody(0.5),
		Label:         models.LabelStranger, Method: models.MethodNew,
	}
	ev := eventWithFrames([]models.Detection{stranger})

	Refine(ev)

	require.Len(t, ev.People, 1)
	for key, act := range ev.People {
		assert.True(t, models.IsStrangerKey(key))
		assert.Equal(t, models.LabelStranger, act.Label)
	}
}

func TestRefineTimestampsSurviveReaggregation(t *testing.T) {
	ev := eventWithFrames(
		[]models.Detection{suspectedDetection(3)},
		[]models.Detection{suspectedDetection(3)},
		[]models.Detection{suspectedDetection(3)},
	)
	Refine(ev)

	act := ev.People[models.KnownPersonKey(3)]
	require.NotNil(t, act)
	assert.Equal(t, baseTime, act.FirstSeen)
	assert.Equal(t, baseTime.Add(2*time.Second), act.LastSeen)
	assert.Equal(t, 3, act.Detections)
}

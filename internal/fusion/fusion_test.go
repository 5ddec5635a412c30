package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

var baseTime = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func defaultPolicy() *Policy {
	return NewPolicy(config.FusionConfig{
		TimeGap:        60 * time.Second,
		StrangerGap:    10 * time.Second,
		InteractionGap: 5 * time.Second,
	})
}

func familyClip(camera string, offset time.Duration, personID int64) models.ClipResult {
	return models.ClipResult{
		Clip: models.Clip{
			VideoPath: "clip.mp4",
			Camera:    camera,
			StartTime: baseTime.Add(offset),
			Duration:  10,
		},
		Frames: [][]models.Detection{{{
			FrameIndex: 0,
			BBox:       [4]float32{100, 100, 200, 300},
			Confidence: 0.9,
			PersonID:   personID,
			PersonName: "dad",
			Label:      models.LabelFamily,
			Method:     models.MethodFace,
		}}},
		FrameW: 1920, FrameH: 1080, SampledFrames: 10,
	}
}

func strangerClip(camera string, offset time.Duration, body []float32) models.ClipResult {
	return models.ClipResult{
		Clip: models.Clip{
			VideoPath: "clip.mp4",
			Camera:    camera,
			StartTime: baseTime.Add(offset),
			Duration:  10,
		},
		Frames: [][]models.Detection{{{
			FrameIndex:    0,
			BBox:          [4]float32{50, 50, 150, 250},
			Confidence:    0.8,
			TrackID:       1,
			BodyEmbedding: body,
			Label:         models.LabelStranger,
			Method:        models.MethodNew,
		}}},
		FrameW: 1920, FrameH: 1080, SampledFrames: 10,
	}
}

func strangerBody(seed float32) []float32 {
	body := make([]float32, 32)
	for i := range body {
		body[i] = seed + float32(i)*0.01
	}
	return body
}

func TestFuseSplitsOnTimeGap(t *testing.T) {
	f := NewFuser(defaultPolicy())
	events := f.Fuse([]models.ClipResult{
		familyClip("doorbell", 0, 1),
		familyClip("doorbell", 30*time.Second, 1),
		familyClip("doorbell", 2*time.Minute, 1),
	})

	require.Len(t, events, 2)
	assert.Len(t, events[0].Clips, 2)
	assert.Len(t, events[1].Clips, 1)
	assert.Equal(t, baseTime, events[0].StartTime)
	assert.Equal(t, baseTime.Add(2*time.Minute), events[1].StartTime)
}

func TestFuseSortsUnorderedInput(t *testing.T) {
	f := NewFuser(defaultPolicy())
	events := f.Fuse([]models.ClipResult{
		familyClip("doorbell", 30*time.Second, 1),
		familyClip("doorbell", 0, 1),
	})

	require.Len(t, events, 1)
	assert.Equal(t, baseTime, events[0].Clips[0].Clip.StartTime)
}

func TestFuseDropsInvalidClips(t *testing.T) {
	f := NewFuser(defaultPolicy())
	bad := familyClip("doorbell", 0, 1)
	bad.Clip.Camera = ""
	events := f.Fuse([]models.ClipResult{bad, familyClip("doorbell", time.Second, 1)})

	require.Len(t, events, 1)
	assert.Len(t, events[0].Clips, 1)
}

func TestConnectedSharedPersonWithinWindow(t *testing.T) {
	p := defaultPolicy()
	a := familyClip("doorbell", 0, 1)
	b := familyClip("indoor_living", 59*time.Second, 1)
	assert.True(t, p.Connected(&a, &b))

	c := familyClip("indoor_living", 60*time.Second, 1)
	assert.False(t, p.Connected(&a, &c))
}

func TestConnectedDifferentPersonsNotConnected(t *testing.T) {
	p := defaultPolicy()
	a := familyClip("doorbell", 0, 1)
	b := familyClip("doorbell", 20*time.Second, 2)
	assert.False(t, p.Connected(&a, &b))
}

func TestConnectedStrangerWindow(t *testing.T) {
	p := defaultPolicy()
	a := strangerClip("outdoor_high", 0, strangerBody(0.1))
	b := strangerClip("outdoor_high", 9*time.Second, strangerBody(0.1))
	assert.True(t, p.Connected(&a, &b))

	c := strangerClip("outdoor_high", 11*time.Second, strangerBody(0.1))
	assert.False(t, p.Connected(&a, &c))
}

func TestConnectedInteractionWindow(t *testing.T) {
	p := defaultPolicy()
	fam := familyClip("doorbell", 0, 1)
	str := strangerClip("doorbell", 4*time.Second, strangerBody(0.2))
	assert.True(t, p.Connected(&fam, &str))
	assert.True(t, p.Connected(&str, &fam))

	late := strangerClip("doorbell", 6*time.Second, strangerBody(0.2))
	assert.False(t, p.Connected(&fam, &late))
}

func TestAggregatePeopleAndCameras(t *testing.T) {
	f := NewFuser(defaultPolicy())
	events := f.Fuse([]models.ClipResult{
		familyClip("doorbell", 0, 1),
		familyClip("indoor_living", 30*time.Second, 1),
	})

	require.Len(t, events, 1)
	ev := events[0]
	assert.ElementsMatch(t, []string{"doorbell", "indoor_living"}, ev.Cameras)

	act, ok := ev.People[models.KnownPersonKey(1)]
	require.True(t, ok)
	assert.Equal(t, models.LabelFamily, act.Label)
	assert.Equal(t, 2, act.Detections)
	assert.Equal(t, baseTime, act.FirstSeen)
	assert.Equal(t, baseTime.Add(30*time.Second), act.LastSeen)
	assert.True(t, act.Cameras["doorbell"])
	assert.True(t, act.Cameras["indoor_living"])
}

func TestAggregateBucketsStrangersByBodyHash(t *testing.T) {
	f := NewFuser(defaultPolicy())
	body := strangerBody(0.3)
	events := f.Fuse([]models.ClipResult{
		strangerClip("outdoor_high", 0, body),
		strangerClip("outdoor_high", 5*time.Second, body),
	})

	require.Len(t, events, 1)
	require.Len(t, events[0].People, 1)
	for key := range events[0].People {
		assert.True(t, models.IsStrangerKey(key))
		assert.NotEqual(t, "stranger_unknown", key)
	}
}

func TestAggregateSplitsBodylessStrangers(t *testing.T) {
	f := NewFuser(defaultPolicy())
	a := strangerClip("outdoor_high", 0, nil)
	b := strangerClip("outdoor_high", 5*time.Second, nil)
	b.Frames[0][0].TrackID = 2
	events := f.Fuse([]models.ClipResult{a, b})

	require.Len(t, events, 1)
	assert.Len(t, events[0].People, 2, "bodyless strangers in different tracks stay separate")
}

func TestEventDurationUsesLongestClip(t *testing.T) {
	f := NewFuser(defaultPolicy())
	a := familyClip("doorbell", 0, 1)
	a.Clip.Duration = 12
	b := familyClip("doorbell", 30*time.Second, 1)
	b.Clip.Duration = 8
	events := f.Fuse([]models.ClipResult{a, b})

	require.Len(t, events, 1)
	assert.Equal(t, 12.0, events[0].Duration)
	assert.Equal(t, baseTime.Add(38*time.Second), events[0].EndTime)
}

func TestKeyframePrefersFaceMethod(t *testing.T) {
	bbox := [4]float32{100, 100, 200, 300}
	face := models.Detection{Method: models.MethodFace, Confidence: 0.5, BBox: bbox}
	body := models.Detection{Method: models.MethodBody, Confidence: 0.99, BBox: bbox}
	plain := models.Detection{Method: models.MethodNew, Confidence: 0.99, BBox: bbox}

	faceScore := KeyframeScore(face, 1920, 1080)
	bodyScore := KeyframeScore(body, 1920, 1080)
	plainScore := KeyframeScore(plain, 1920, 1080)
	assert.Greater(t, faceScore, bodyScore)
	assert.Greater(t, bodyScore, plainScore)
}

func TestKeyframeTieBreaksOnEarliestFrame(t *testing.T) {
	early := models.Keyframe{Detection: models.Detection{FrameIndex: 1}, ClipIndex: 0, Score: 100}
	late := models.Keyframe{Detection: models.Detection{FrameIndex: 5}, ClipIndex: 0, Score: 100}

	assert.False(t, betterKeyframe(late, &early))
	assert.True(t, betterKeyframe(early, &late))

	higher := models.Keyframe{Detection: models.Detection{FrameIndex: 9}, ClipIndex: 1, Score: 101}
	assert.True(t, betterKeyframe(higher, &early))
}

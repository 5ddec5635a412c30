package fusion

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/your-org/homewatch/internal/models"
)

// Fuser turns an unordered batch of clip results into ordered events.
type Fuser struct {
	policy *Policy
}

func NewFuser(policy *Policy) *Fuser {
	return &Fuser{policy: policy}
}

// Fuse validates and sorts the clips, then runs a single pass with a
// sliding buffer: a clip joins the buffer while the policy connects it
// to the buffer's last clip, otherwise the buffer seals into an event.
func (f *Fuser) Fuse(results []models.ClipResult) []*models.Event {
	valid := make([]models.ClipResult, 0, len(results))
	for _, r := range results {
		if r.Clip.VideoPath == "" || r.Clip.Camera == "" || r.Clip.StartTime.IsZero() {
			slog.Warn("dropping clip with missing fields",
				"video_path", r.Clip.VideoPath, "camera", r.Clip.Camera)
			continue
		}
		valid = append(valid, r)
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Clip.StartTime.Before(valid[j].Clip.StartTime)
	})

	var events []*models.Event
	var buffer []models.ClipResult
	for i := range valid {
		if len(buffer) > 0 && !f.policy.Connected(&buffer[len(buffer)-1], &valid[i]) {
			events = append(events, buildEvent(buffer))
			buffer = nil
		}
		buffer = append(buffer, valid[i])
	}
	if len(buffer) > 0 {
		events = append(events, buildEvent(buffer))
	}
	return events
}

func buildEvent(clips []models.ClipResult) *models.Event {
	ev := &models.Event{Clips: append([]models.ClipResult(nil), clips...)}

	first := ev.Clips[0].Clip
	last := ev.Clips[len(ev.Clips)-1].Clip
	ev.StartTime = first.StartTime
	ev.EndTime = last.StartTime
	if last.Duration > 0 {
		ev.EndTime = last.StartTime.Add(time.Duration(last.Duration * float64(time.Second)))
	}

	maxDur := 0.0
	for _, c := range ev.Clips {
		if c.Clip.Duration > maxDur {
			maxDur = c.Clip.Duration
		}
	}
	ev.Duration = maxDur
	if ev.Duration <= 0 {
		ev.Duration = ev.EndTime.Sub(ev.StartTime).Seconds()
	}

	aggregate(ev)
	return ev
}

// aggregate rebuilds the event's cameras, people and keyframes from its
// clip detections. Called after fusion and again after refinement.
func aggregate(ev *models.Event) {
	ev.Cameras = nil
	ev.People = make(map[string]*models.PersonActivity)
	ev.Keyframes = make(map[string]models.Keyframe)

	cams := make(map[string]bool)
	// Strangers without a body embedding cannot be bucketed by hash.
	// Detections of one track are one physical person, so each distinct
	// clip+track pair gets the next index in the unknown bucket series.
	unknown := make(map[string]int)

	for ci := range ev.Clips {
		clip := &ev.Clips[ci]
		if !cams[clip.Clip.Camera] {
			cams[clip.Clip.Camera] = true
			ev.Cameras = append(ev.Cameras, clip.Clip.Camera)
		}
		for _, frame := range clip.Frames {
			for _, det := range frame {
				key := models.DetectionKey(det)
				if key == "stranger_unknown" {
					trackKey := fmt.Sprintf("%d/%d", ci, det.TrackID)
					idx, ok := unknown[trackKey]
					if !ok {
						idx = len(unknown)
						unknown[trackKey] = idx
					}
					key = fmt.Sprintf("stranger_unknown_%d", idx)
				}

				seen := clip.Clip.StartTime.Add(time.Duration(det.FrameIndex) * time.Second)
				act := ev.People[key]
				if act == nil {
					act = &models.PersonActivity{
						Label:     det.Label,
						FirstSeen: seen,
						LastSeen:  seen,
						Cameras:   make(map[string]bool),
					}
					ev.People[key] = act
				}
				if seen.Before(act.FirstSeen) {
					act.FirstSeen = seen
				}
				if seen.After(act.LastSeen) {
					act.LastSeen = seen
				}
				// A refined label wins over the per-detection original.
				if det.Label == models.LabelFamily {
					act.Label = models.LabelFamily
				}
				act.Cameras[clip.Clip.Camera] = true
				act.Detections++

				kf := models.Keyframe{
					Detection: det,
					ClipIndex: ci,
					Score:     KeyframeScore(det, clip.FrameW, clip.FrameH),
				}
				cur, ok := ev.Keyframes[key]
				if !ok {
					ev.Keyframes[key] = kf
				} else if betterKeyframe(kf, &cur) {
					ev.Keyframes[key] = kf
				}
			}
		}
	}
}

package vision

import (
	"github.com/your-org/homewatch/internal/models"
)

// Track is one person followed across sampled frames within a clip.
type Track struct {
	ID            int
	BBox          [4]float32
	LastFrame     int // frame index of the last matched detection
	LastFullFrame int // frame index of the last full-path evaluation
	Resolution    models.Resolution
}

// Tracker is the intra-clip IoU tracker. A detection matching a live
// track within the revalidation window reuses the track's stored
// identity without re-extracting embeddings or calling the arbiter.
// Trackers live for exactly one clip; track ids never cross clips.
type Tracker struct {
	tracks     []*Track
	nextID     int
	iouThr     float32
	revalidate int // frames between full-path re-evaluations
	maxAge     int // frames without a match before a track expires
}

func NewTracker(iouThr float64, revalidate, maxAge int) *Tracker {
	return &Tracker{
		iouThr:     float32(iouThr),
		revalidate: revalidate,
		maxAge:     maxAge,
	}
}

// BeginFrame expires tracks not matched for more than maxAge frames.
// Call once per sampled frame before matching its detections.
func (t *Tracker) BeginFrame(frameIdx int) {
	live := t.tracks[:0]
	for _, tr := range t.tracks {
		if frameIdx-tr.LastFrame <= t.maxAge {
			live = append(live, tr)
		}
	}
	t.tracks = live
}

// Match finds the live track with the highest IoU at or above the
// threshold. Returns nil when no track matches.
func (t *Tracker) Match(bbox [4]float32) *Track {
	var best *Track
	bestIoU := t.iouThr
	for _, tr := range t.tracks {
		v := iou(bbox, tr.BBox)
		if v >= bestIoU {
			bestIoU = v
			best = tr
		}
	}
	return best
}

// CanReuse reports whether a matched track's identity may be reused
// without a full-path evaluation at this frame.
func (t *Tracker) CanReuse(tr *Track, frameIdx int) bool {
	return frameIdx-tr.LastFullFrame < t.revalidate
}

// Reuse updates a matched track's geometry without touching identity.
func (t *Tracker) Reuse(tr *Track, frameIdx int, bbox [4]float32) {
	tr.BBox = bbox
	tr.LastFrame = frameIdx
}

// Commit records a full-path evaluation on an existing or new track and
// returns the track carrying the fresh resolution.
func (t *Tracker) Commit(tr *Track, frameIdx int, bbox [4]float32, res models.Resolution) *Track {
	if tr == nil {
		t.nextID++
		tr = &Track{ID: t.nextID}
		t.tracks = append(t.tracks, tr)
	}
	tr.BBox = bbox
	tr.LastFrame = frameIdx
	tr.LastFullFrame = frameIdx
	tr.Resolution = res
	return tr
}

// TrackCount returns the number of live tracks.
func (t *Tracker) TrackCount() int {
	return len(t.tracks)
}

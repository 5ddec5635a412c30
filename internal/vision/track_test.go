package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/models"
)

func newTestTracker() *Tracker {
	return NewTracker(0.7, 5, 3)
}

func TestTrackerMatchesOverlappingBox(t *testing.T) {
	tr := newTestTracker()
	box := [4]float32{100, 100, 200, 300}
	track := tr.Commit(nil, 0, box, models.Resolution{PersonID: 1})

	tr.BeginFrame(1)
	moved := [4]float32{105, 102, 205, 302}
	matched := tr.Match(moved)
	require.NotNil(t, matched)
	assert.Equal(t, track.ID, matched.ID)
	assert.Equal(t, int64(1), matched.Resolution.PersonID)
}

func TestTrackerRejectsDistantBox(t *testing.T) {
	tr := newTestTracker()
	tr.Commit(nil, 0, [4]float32{100, 100, 200, 300}, models.Resolution{})

	tr.BeginFrame(1)
	assert.Nil(t, tr.Match([4]float32{400, 400, 500, 600}))
}

func TestTrackerReuseWindow(t *testing.T) {
	tr := newTestTracker()
	box := [4]float32{0, 0, 100, 100}
	track := tr.Commit(nil, 0, box, models.Resolution{PersonID: 7})

	// Within the revalidation window the cached identity is reused.
	assert.True(t, tr.CanReuse(track, 4))
	// At the window boundary a full re-evaluation is due.
	assert.False(t, tr.CanReuse(track, 5))

	tr.Commit(track, 5, box, models.Resolution{PersonID: 7})
	assert.True(t, tr.CanReuse(track, 9))
}

func TestTrackerExpiresStaleTracks(t *testing.T) {
	tr := newTestTracker()
	box := [4]float32{0, 0, 100, 100}
	tr.Commit(nil, 0, box, models.Resolution{})
	require.Equal(t, 1, tr.TrackCount())

	// maxAge is 3: the track survives frame 3 and dies at frame 4.
	tr.BeginFrame(3)
	assert.Equal(t, 1, tr.TrackCount())
	tr.BeginFrame(4)
	assert.Equal(t, 0, tr.TrackCount())
}

func TestTrackerAssignsFreshIDs(t *testing.T) {
	tr := newTestTracker()
	a := tr.Commit(nil, 0, [4]float32{0, 0, 50, 50}, models.Resolution{})
	b := tr.Commit(nil, 0, [4]float32{200, 200, 250, 250}, models.Resolution{})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, tr.TrackCount())
}

func TestIoU(t *testing.T) {
	a := [4]float32{0, 0, 100, 100}
	assert.InDelta(t, 1.0, iou(a, a), 1e-6)
	assert.InDelta(t, 0.0, iou(a, [4]float32{200, 200, 300, 300}), 1e-6)

	// Half-overlapping boxes: intersection 50x100, union 150x100.
	b := [4]float32{50, 0, 150, 100}
	assert.InDelta(t, 1.0/3.0, iou(a, b), 1e-3)
}

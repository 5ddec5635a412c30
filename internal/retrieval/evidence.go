package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/homewatch/internal/ingest"
	"github.com/your-org/homewatch/internal/storage"
)

const snapshotURLExpiry = 24 * time.Hour

// Materializer extracts one snapshot per appearance from the source
// video and attaches presigned URLs to detail evidence.
type Materializer struct {
	objects      *storage.MinIOStore
	videoBaseDir string
}

func NewMaterializer(objects *storage.MinIOStore, videoBaseDir string) *Materializer {
	return &Materializer{objects: objects, videoBaseDir: videoBaseDir}
}

// Materialize fills Images on each detail evidence item. Every failure
// is logged and skipped; evidence without snapshots is still usable.
func (m *Materializer) Materialize(ctx context.Context, evidence []Evidence) {
	if m == nil || m.objects == nil {
		return
	}
	for i := range evidence {
		ev := &evidence[i]
		if ev.Type != "detail" || ev.Event == nil {
			continue
		}
		if ev.Event.Event.VideoFilename == "" {
			continue
		}
		videoPath := filepath.Join(m.videoBaseDir, ev.Event.Event.VideoFilename)

		for _, ap := range ev.Event.Appearances {
			url, err := m.snapshot(ctx, videoPath, ev.Event.Event.ID.String(), ap.ID)
			if err != nil {
				slog.Warn("evidence snapshot failed",
					"event_id", ev.Event.Event.ID, "appearance_id", ap.ID, "error", err)
				continue
			}
			ev.Images = append(ev.Images, url)
		}
	}
}

func (m *Materializer) snapshot(ctx context.Context, videoPath, eventID string, appearanceID int64) (string, error) {
	data, err := ingest.SnapshotAt(ctx, videoPath, 0)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("evidence/%s/%d.jpg", eventID, appearanceID)
	if err := m.objects.PutObject(ctx, key, data, "image/jpeg"); err != nil {
		return "", err
	}
	return m.objects.PresignedURL(ctx, key, snapshotURLExpiry)
}

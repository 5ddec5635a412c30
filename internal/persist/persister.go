// Package persist writes fused, summarized events to the store, one
// transaction per event.
package persist

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/your-org/homewatch/internal/fusion"
	"github.com/your-org/homewatch/internal/ingest"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/queue"
	"github.com/your-org/homewatch/internal/storage"
)

// Persister stores events, uploads keyframe snapshots and publishes
// notices after commit. Objects and Notifier are optional.
type Persister struct {
	store    *storage.PostgresStore
	objects  *storage.MinIOStore
	notifier *queue.Producer
}

func NewPersister(store *storage.PostgresStore, objects *storage.MinIOStore, notifier *queue.Producer) *Persister {
	return &Persister{store: store, objects: objects, notifier: notifier}
}

// PersistEvent writes one event atomically: the event row, stranger
// person upserts, one appearance per identity and behaviour role
// updates. Either everything from the event is visible or nothing is.
func (p *Persister) PersistEvent(ctx context.Context, ev *models.Event) (*models.StoredEvent, error) {
	stored := &models.StoredEvent{
		ID:             uuid.New(),
		VideoFilename:  firstClipName(ev),
		StartTime:      ev.StartTime,
		CameraLocation: strings.Join(ev.Cameras, ","),
		LLMDescription: ev.Summary,
	}

	groups := groupDetections(ev)

	err := p.store.WithTx(ctx, func(tx pgx.Tx) error {
		if err := p.store.InsertEventTx(ctx, tx, stored); err != nil {
			return err
		}

		for _, g := range groups {
			rep := representative(ev, g)
			if rep == nil || len(rep.Detection.BodyEmbedding) == 0 {
				slog.Warn("skipping appearance without body embedding",
					"event_id", stored.ID, "key", g.key)
				continue
			}

			personID := g.personID
			if personID == 0 {
				role := models.MapRole(ev.RoleOverrides[g.key])
				name := StrangerName(ev.StartTime, g.key)
				id, err := p.store.UpsertStrangerTx(ctx, tx, name, role,
					rep.Detection.BodyEmbedding, ev.StartTime)
				if err != nil {
					return fmt.Errorf("upsert stranger %s: %w", g.key, err)
				}
				personID = id
			} else if override, ok := ev.RoleOverrides[g.key]; ok {
				note := fmt.Sprintf("role inferred from behaviour as %s on %s",
					override, ev.StartTime.Format("2006-01-02"))
				if err := p.store.UpdateRoleTx(ctx, tx, personID, models.MapRole(override), note); err != nil {
					return fmt.Errorf("update role for person %d: %w", personID, err)
				}
			}

			ap := &models.StoredAppearance{
				EventID:       stored.ID,
				PersonID:      personID,
				MatchMethod:   models.MapMatchMethod(rep.Detection.Method),
				BodyEmbedding: rep.Detection.BodyEmbedding,
				KeyframeKey:   keyframeKey(stored.ID, g.key),
			}
			if err := p.store.InsertAppearanceTx(ctx, tx, ap); err != nil {
				return fmt.Errorf("insert appearance for %s: %w", g.key, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	observability.EventsPersisted.Inc()

	p.uploadKeyframes(ctx, stored.ID, ev, groups)
	p.notify(ctx, stored, ev)
	return stored, nil
}

// detectionGroup is all detections of one identity within one event.
type detectionGroup struct {
	key      string
	personID int64
}

func groupDetections(ev *models.Event) []detectionGroup {
	var groups []detectionGroup
	for _, key := range sortedKeys(ev.Keyframes) {
		kf := ev.Keyframes[key]
		groups = append(groups, detectionGroup{key: key, personID: kf.Detection.PersonID})
	}
	return groups
}

// representative returns the highest-scoring keyframe detection for a
// group. The fusion aggregator has already applied the scoring rule,
// but a group whose keyframe lacks a body vector gets a second chance
// from the raw detections of the same identity.
func representative(ev *models.Event, g detectionGroup) *models.Keyframe {
	kf, ok := ev.Keyframes[g.key]
	if !ok {
		return nil
	}
	if len(kf.Detection.BodyEmbedding) > 0 {
		return &kf
	}

	var best *models.Keyframe
	for ci := range ev.Clips {
		clip := &ev.Clips[ci]
		for _, frame := range clip.Frames {
			for _, det := range frame {
				if det.PersonID != g.personID {
					continue
				}
				if g.personID == 0 && models.DetectionKey(det) != g.key {
					continue
				}
				if len(det.BodyEmbedding) == 0 {
					continue
				}
				cand := models.Keyframe{
					Detection: det,
					ClipIndex: ci,
					Score:     fusion.KeyframeScore(det, clip.FrameW, clip.FrameH),
				}
				if best == nil || cand.Score > best.Score {
					c := cand
					best = &c
				}
			}
		}
	}
	return best
}

// StrangerName builds the stored person name for a stranger bucket,
// e.g. Stranger_20250901_090000_ab12cd34.
func StrangerName(start time.Time, bucketKey string) string {
	suffix := strings.TrimPrefix(bucketKey, "stranger_")
	return fmt.Sprintf("Stranger_%s_%s", start.Format("20060102_150405"), suffix)
}

func keyframeKey(eventID uuid.UUID, personKey string) string {
	return fmt.Sprintf("keyframes/%s/%s.jpg", eventID, personKey)
}

func firstClipName(ev *models.Event) string {
	if len(ev.Clips) == 0 {
		return ""
	}
	return filepath.Base(ev.Clips[0].Clip.VideoPath)
}

// uploadKeyframes extracts one snapshot per identity from the source
// clip at the keyframe's offset and stores it as a JPEG object.
// Upload failures are logged, never fatal.
func (p *Persister) uploadKeyframes(ctx context.Context, eventID uuid.UUID, ev *models.Event, groups []detectionGroup) {
	if p.objects == nil {
		return
	}
	for _, g := range groups {
		kf, ok := ev.Keyframes[g.key]
		if !ok || kf.ClipIndex >= len(ev.Clips) {
			continue
		}
		clip := ev.Clips[kf.ClipIndex].Clip
		data, err := ingest.SnapshotAt(ctx, clip.VideoPath, float64(kf.Detection.FrameIndex))
		if err != nil {
			slog.Warn("keyframe snapshot failed",
				"event_id", eventID, "key", g.key, "error", err)
			continue
		}
		if err := p.objects.PutObject(ctx, keyframeKey(eventID, g.key), data, "image/jpeg"); err != nil {
			slog.Warn("keyframe upload failed",
				"event_id", eventID, "key", g.key, "error", err)
		}
	}
}

func (p *Persister) notify(ctx context.Context, stored *models.StoredEvent, ev *models.Event) {
	if p.notifier == nil {
		return
	}
	notice := models.EventNotice{
		EventID:        stored.ID,
		StartTime:      stored.StartTime,
		CameraLocation: stored.CameraLocation,
		People:         peopleNames(ev),
		Summary:        stored.LLMDescription,
	}
	if err := p.notifier.PublishEventNotice(ctx, stored.ID.String(), notice); err != nil {
		slog.Warn("event notice publish failed", "event_id", stored.ID, "error", err)
	}
}

func peopleNames(ev *models.Event) []string {
	var names []string
	for _, key := range sortedKeys(ev.Keyframes) {
		kf := ev.Keyframes[key]
		if kf.Detection.PersonName != "" {
			names = append(names, kf.Detection.PersonName)
		} else {
			names = append(names, key)
		}
	}
	return names
}

func sortedKeys(m map[string]models.Keyframe) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	// Known persons first in id order, stranger buckets after.
	rank := func(k string) (int, string) {
		if id, err := strconv.ParseInt(strings.TrimPrefix(k, "person_"), 10, 64); err == nil {
			return 0, fmt.Sprintf("%020d", id)
		}
		return 1, k
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, si := rank(keys[i])
		rj, sj := rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return si < sj
	})
	return keys
}

// Package identity resolves detections to persons using the
// face-then-body policy over the enrolled face table and the
// time-windowed body cache.
package identity

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
	"github.com/your-org/homewatch/internal/storage"
)

// Store is the storage surface the arbiter needs. *storage.PostgresStore
// satisfies it; tests fake it.
type Store interface {
	SearchFaces(ctx context.Context, embedding []float32, threshold float64, limit int) ([]storage.FaceMatch, error)
	BindBodyToPerson(ctx context.Context, personID int64, body []float32, at time.Time) error
	MatchBodyCache(ctx context.Context, body []float32, cutoff time.Time, hard, soft float64, at time.Time) (*storage.BodyCacheMatch, error)
}

// Arbiter applies the identification policy, first match wins:
// face hit, body-cache hit, soft body hit, miss.
type Arbiter struct {
	store Store
	cfg   config.IdentityConfig
}

func NewArbiter(store Store, cfg config.IdentityConfig) *Arbiter {
	return &Arbiter{store: store, cfg: cfg}
}

// Identify resolves one detection. Face matches are authoritative and
// bind the body vector to the matched person, so a once-face-identified
// person can later be recognized by back or side profile for the
// duration of the cache window. Soft hits never write the cache.
func (a *Arbiter) Identify(ctx context.Context, faceVec, bodyVec []float32, clipTime time.Time) (models.Resolution, error) {

	// 1. Face path.
	if len(faceVec) > 0 {
		matches, err := a.store.SearchFaces(ctx, faceVec, a.cfg.FaceThreshold, 1)
		if err != nil {
			return models.Resolution{}, err
		}
		if len(matches) > 0 {
			m := matches[0]
			if len(bodyVec) > 0 {
				if err := a.store.BindBodyToPerson(ctx, m.PersonID, bodyVec, clipTime); err != nil {
					slog.Warn("bind body to person failed", "person_id", m.PersonID, "error", err)
				} else {
					observability.BodyCacheWrites.WithLabelValues("face").Inc()
				}
			}
			return models.Resolution{
				PersonID:   m.PersonID,
				PersonName: m.Name,
				Label:      labelForRole(m.Role),
				Method:     models.MethodFace,
				Confidence: m.Score,
			}, nil
		}
	}

	// 2/3. Body and soft body paths.
	if len(bodyVec) > 0 {
		cutoff := clipTime.Add(-a.cfg.BodyCacheWindow)
		m, err := a.store.MatchBodyCache(ctx, bodyVec, cutoff,
			a.cfg.BodyThreshold, a.cfg.SoftBodyThreshold, clipTime)
		if err != nil {
			return models.Resolution{}, err
		}
		if m != nil {
			if m.Refreshed {
				observability.BodyCacheWrites.WithLabelValues("body").Inc()
				return models.Resolution{
					PersonID:   m.PersonID,
					PersonName: m.Name,
					Label:      models.LabelFamily,
					Method:     models.MethodBody,
					Confidence: m.Score,
				}, nil
			}
			return models.Resolution{
				PersonID:   m.PersonID,
				PersonName: m.Name,
				Label:      models.LabelSuspectedFamily,
				Method:     models.MethodSoftBody,
				Confidence: m.Score,
			}, nil
		}
	}

	// 4. Miss: stranger, body vector echoed by the caller for bucketing.
	return models.Resolution{
		Label:  models.LabelStranger,
		Method: models.MethodNew,
	}, nil
}

// labelForRole maps the storage role of a face-matched person to the
// in-memory label. Enrolled owners surface as family.
func labelForRole(role models.Role) string {
	switch role {
	case models.RoleOwner:
		return models.LabelFamily
	case models.RoleVisitor:
		return models.LabelVisitor
	default:
		return models.LabelStranger
	}
}

// Package fusion groups scanned clips into events and refines
// borderline identities using event-level evidence.
package fusion

import (
	"time"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

// Policy decides whether two adjacent clips belong to the same event.
type Policy struct {
	timeGap        time.Duration
	strangerGap    time.Duration
	interactionGap time.Duration
}

func NewPolicy(cfg config.FusionConfig) *Policy {
	return &Policy{
		timeGap:        cfg.TimeGap,
		strangerGap:    cfg.StrangerGap,
		interactionGap: cfg.InteractionGap,
	}
}

// clipIdentity summarizes who appears in one clip for the policy checks.
type clipIdentity struct {
	known        map[int64]bool
	onlyFamily   bool
	onlyStranger bool
}

func summarizeClip(c *models.ClipResult) clipIdentity {
	id := clipIdentity{known: make(map[int64]bool)}
	total := 0
	family := 0
	stranger := 0
	for _, frame := range c.Frames {
		for _, det := range frame {
			total++
			if det.PersonID > 0 {
				id.known[det.PersonID] = true
			} else {
				stranger++
			}
			if det.Label == models.LabelFamily {
				family++
			}
		}
	}
	id.onlyFamily = total > 0 && family == total
	id.onlyStranger = total > 0 && stranger == total
	return id
}

// Connected reports whether cur continues the event ended by last.
// Both the time rule and the identity rule must hold: clips within the
// window are connected when they share a resolved person, when both
// hold only strangers within the stranger window, or when a
// family-only clip meets a stranger-only clip within the interaction
// window.
func (p *Policy) Connected(last, cur *models.ClipResult) bool {
	gap := cur.Clip.StartTime.Sub(last.Clip.StartTime)
	if gap < 0 || gap >= p.timeGap {
		return false
	}

	a := summarizeClip(last)
	b := summarizeClip(cur)

	for id := range a.known {
		if b.known[id] {
			return true
		}
	}
	if a.onlyStranger && b.onlyStranger && gap < p.strangerGap {
		return true
	}
	mix := (a.onlyFamily && b.onlyStranger) || (a.onlyStranger && b.onlyFamily)
	if mix && gap < p.interactionGap {
		return true
	}
	return false
}

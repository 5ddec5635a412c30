package fusion

import (
	"github.com/your-org/homewatch/internal/models"
)

// Refine re-evaluates borderline identities inside one event using
// repetition and co-occurrence, then re-aggregates the event. The
// passes run in order and each sees the previous pass's relabeling.
func Refine(ev *models.Event) {
	promoteRepeatedSuspects(ev)
	suspectStrangersNearFamily(ev)
	promoteByCoOccurrence(ev)
	aggregate(ev)
}

// promoteRepeatedSuspects promotes a person seen as suspected_family at
// least three times in the event to family.
func promoteRepeatedSuspects(ev *models.Event) {
	counts := make(map[int64]int)
	forEachDetection(ev, func(det *models.Detection) {
		if det.PersonID > 0 && det.Label == models.LabelSuspectedFamily {
			counts[det.PersonID]++
		}
	})
	forEachDetection(ev, func(det *models.Detection) {
		if det.PersonID > 0 && det.Label == models.LabelSuspectedFamily && counts[det.PersonID] >= 3 {
			det.Label = models.LabelFamily
			det.Method = models.MethodRefinedFromSuspected
		}
	})
}

// suspectStrangersNearFamily marks strangers as suspected_family when
// the event also contains family and the strangers appear at least
// three times. Repeated presence alongside family is usually a cache
// miss on a household member, not an intruder.
func suspectStrangersNearFamily(ev *models.Event) {
	family := false
	strangers := 0
	forEachDetection(ev, func(det *models.Detection) {
		switch det.Label {
		case models.LabelFamily:
			family = true
		case models.LabelStranger:
			strangers++
		}
	})
	if !family || strangers < 3 {
		return
	}
	forEachDetection(ev, func(det *models.Detection) {
		if det.Label == models.LabelStranger {
			det.Label = models.LabelSuspectedFamily
			det.Method = models.MethodRefinedFromStranger
		}
	})
}

// promoteByCoOccurrence promotes suspected_family and stranger
// detections sharing a frame with a confirmed family detection.
func promoteByCoOccurrence(ev *models.Event) {
	for ci := range ev.Clips {
		for fi := range ev.Clips[ci].Frames {
			frame := ev.Clips[ci].Frames[fi]
			family := false
			for i := range frame {
				if frame[i].Label == models.LabelFamily {
					family = true
					break
				}
			}
			if !family {
				continue
			}
			for i := range frame {
				if frame[i].Label == models.LabelSuspectedFamily || frame[i].Label == models.LabelStranger {
					frame[i].Label = models.LabelFamily
					frame[i].Method = models.MethodRefinedFromContext
				}
			}
		}
	}
}

func forEachDetection(ev *models.Event, fn func(det *models.Detection)) {
	for ci := range ev.Clips {
		for fi := range ev.Clips[ci].Frames {
			for di := range ev.Clips[ci].Frames[fi] {
				fn(&ev.Clips[ci].Frames[fi][di])
			}
		}
	}
}

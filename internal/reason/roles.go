package reason

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/your-org/homewatch/internal/models"
)

var defaultDeliveryCues = []string{
	`快递`, `包裹`, `配送`, `送货`, `送餐`, `外卖`,
	`快递员`, `配送员`, `送货员`, `送餐员`,
	`拿着.*包裹`, `拿着.*快递`, `拿着.*盒子`, `拿着.*箱子`,
	`投递`, `签收`, `快递单`, `配送单`,
	`送.*包裹`, `送.*快递`,
}

var defaultServiceCues = []string{
	`维修`, `清洁`, `保洁`, `安装`, `检修`,
	`维修工`, `清洁工`, `安装工`, `检修工`,
	`工具箱`, `维修工具`, `清洁工具`,
}

var visitorCues = []string{
	`访客`, `拜访`, `来访`, `客人`, `朋友`,
	`敲门`, `按门铃`, `等待`, `进入`,
}

var ownerCues = []string{
	`家人`, `主人`, `住户`, `居民`,
}

// strongCues are explicit enough to override a face-confirmed family
// label, e.g. a household member carrying parcels for a courier photo.
var strongCues = []string{
	`拿着.*包裹`, `拿着.*快递`, `拿着.*盒子`, `拿着.*箱子`,
	`送.*包裹`, `送.*快递`, `送.*外卖`,
	`快递员`, `配送员`, `送货员`,
	`投递`, `签收`, `快递单`, `配送单`,
	`维修`, `清洁`, `工具箱`,
}

// Classifier infers behavioural roles from summary text using cue
// patterns. Delivery and service cue sets can be overridden via config.
type Classifier struct {
	patterns map[string][]*regexp.Regexp
	strong   []*regexp.Regexp
}

func NewClassifier(deliveryCues, serviceCues []string) *Classifier {
	if len(deliveryCues) == 0 {
		deliveryCues = defaultDeliveryCues
	}
	if len(serviceCues) == 0 {
		serviceCues = defaultServiceCues
	}
	return &Classifier{
		patterns: map[string][]*regexp.Regexp{
			models.LabelDelivery: compileCues(deliveryCues),
			models.LabelService:  compileCues(serviceCues),
			models.LabelVisitor:  compileCues(visitorCues),
			models.LabelFamily:   compileCues(ownerCues),
		},
		strong: compileCues(strongCues),
	}
}

func compileCues(cues []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(cues))
	for _, cue := range cues {
		re, err := regexp.Compile(cue)
		if err != nil {
			slog.Warn("skipping invalid role cue", "cue", cue, "error", err)
			continue
		}
		out = append(out, re)
	}
	return out
}

// Classify scores each role's cue hits in the description and returns
// the best one, keeping current when nothing matches.
func (c *Classifier) Classify(description, current string) string {
	best := current
	bestScore := 0
	roles := make([]string, 0, len(c.patterns))
	for role := range c.patterns {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		score := 0
		for _, re := range c.patterns[role] {
			score += len(re.FindAllStringIndex(description, -1))
		}
		if score > bestScore {
			best = role
			bestScore = score
		}
	}
	return best
}

// StrongEvidence reports whether the description contains a cue
// explicit enough to override a family label.
func (c *Classifier) StrongEvidence(description string) bool {
	for _, re := range c.strong {
		if re.MatchString(description) {
			return true
		}
	}
	return false
}

// ApplyOverrides infers behavioural roles for the event's people from
// the accepted summary and records them on the event. Family labels
// are only overridden towards delivery or service on strong evidence.
func (c *Classifier) ApplyOverrides(ev *models.Event, summary string) {
	if summary == "" || len(ev.People) == 0 {
		return
	}
	for key, act := range ev.People {
		if !mentioned(summary, key) {
			continue
		}
		inferred := c.Classify(summary, act.Label)
		if inferred == act.Label {
			continue
		}
		if act.Label == models.LabelFamily {
			overridable := inferred == models.LabelDelivery || inferred == models.LabelService
			if !overridable || !c.StrongEvidence(summary) {
				continue
			}
			slog.Info("overriding family role on strong behaviour evidence",
				"person", key, "inferred", inferred)
		}
		if ev.RoleOverrides == nil {
			ev.RoleOverrides = make(map[string]string)
		}
		ev.RoleOverrides[key] = inferred
	}
}

// mentioned reports whether the summary plausibly refers to this
// identity key. Known persons are referenced as Person_<id>; strangers
// by class words.
func mentioned(summary, key string) bool {
	if models.IsStrangerKey(key) {
		for _, word := range []string{"陌生人", "陌生", "未知", "不明身份", "人员", "人物"} {
			if strings.Contains(summary, word) {
				return true
			}
		}
		return false
	}
	id := strings.TrimPrefix(key, "person_")
	for _, pattern := range []string{
		fmt.Sprintf("Person_%s", id),
		fmt.Sprintf("人物%s", id),
		fmt.Sprintf("ID:%s", id),
	} {
		if strings.Contains(summary, pattern) {
			return true
		}
	}
	return false
}

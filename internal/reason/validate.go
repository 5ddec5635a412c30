package reason

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/your-org/homewatch/internal/models"
)

var (
	boldRe    = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italicRe  = regexp.MustCompile(`\*([^*]+)\*`)
	codeRe    = regexp.MustCompile("`([^`]+)`")
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

var (
	familyKeywords   = []string{"家人", "爸爸", "妈妈", "主人", "住户"}
	strangerKeywords = []string{"陌生人", "入侵", "可疑", "未授权", "闯入", "非法"}
	negations        = []string{"未", "没有", "无", "不"}
)

// CleanMarkup strips markdown emphasis and collapses blank-line runs.
func CleanMarkup(text string) string {
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// ValidateSummary cleans the model output and checks it against the
// timeline for hallucinated people. A flagged or empty summary is
// replaced by the deterministic fallback.
func ValidateSummary(raw, timeline string, ev *models.Event) string {
	text := CleanMarkup(raw)
	if text == "" {
		return FallbackSummary(ev)
	}
	if hallucinated(text, timeline) {
		return FallbackSummary(ev)
	}
	return text
}

// hallucinated reports whether the summary mentions a people class the
// timeline never did. A keyword preceded by a negation within five
// characters counts as a denial, not a mention.
func hallucinated(text, timeline string) bool {
	if !strings.Contains(timeline, "家人") && mentions(text, familyKeywords) {
		return true
	}
	if !strings.Contains(timeline, "陌生人") && mentions(text, strangerKeywords) {
		return true
	}
	return false
}

func mentions(text string, keywords []string) bool {
	runes := []rune(text)
	plain := string(runes)
	for _, kw := range keywords {
		idx := strings.Index(plain, kw)
		if idx < 0 {
			continue
		}
		// Index is in bytes; negation windows count runes.
		pos := len([]rune(plain[:idx]))
		start := pos - 5
		if start < 0 {
			start = 0
		}
		before := string(runes[start:pos])
		negated := false
		for _, neg := range negations {
			if strings.Contains(before, neg) {
				negated = true
				break
			}
		}
		if !negated {
			return true
		}
	}
	return false
}

// FallbackSummary builds a deterministic description from the event's
// start time, cameras and per-person placements. Used when the model
// output is empty or fails validation.
func FallbackSummary(ev *models.Event) string {
	timeStr := ev.StartTime.Format("15:04")

	if len(ev.People) == 0 {
		return fmt.Sprintf("%s，在%s未检测到人员活动。", timeStr, cameraListing(ev.Cameras))
	}

	keys := make([]string, 0, len(ev.People))
	for key := range ev.People {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var details []string
	for _, key := range keys {
		act := ev.People[key]
		switch act.Label {
		case models.LabelFamily, models.LabelSuspectedFamily:
			name := strings.TrimPrefix(key, "person_")
			if cam := firstCamera(act.Cameras); cam != "" {
				details = append(details, fmt.Sprintf("家人(Person_%s)在%s", name, PlaceName(cam)))
			} else {
				details = append(details, fmt.Sprintf("家人(Person_%s)", name))
			}
		default:
			details = append(details, "陌生人")
		}
	}

	line := fmt.Sprintf("%s，%s出现", timeStr, strings.Join(details, "，"))
	if ev.Duration > 0 {
		if ev.Duration < 60 {
			line += fmt.Sprintf("，活动持续约%.0f秒", ev.Duration)
		} else {
			line += fmt.Sprintf("，活动持续约%.1f分钟", ev.Duration/60)
		}
	}
	return line + "。"
}

func cameraListing(cameras []string) string {
	if len(cameras) == 0 {
		return "监控区域"
	}
	shown := cameras
	if len(shown) > 2 {
		shown = shown[:2]
	}
	listing := strings.Join(shown, "、")
	if len(cameras) > 2 {
		listing += fmt.Sprintf("等%d个位置", len(cameras))
	}
	return listing
}

func firstCamera(cams map[string]bool) string {
	keys := make([]string, 0, len(cams))
	for cam := range cams {
		keys = append(keys, cam)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

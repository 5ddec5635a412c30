// Package reason builds the per-event prompt context, calls the
// language model and validates the result before persistence.
package reason

import (
	"fmt"
	"sort"
	"strings"

	"github.com/your-org/homewatch/internal/models"
)

// CamPlaces maps camera ids to the place names used in prompts.
var CamPlaces = map[string]string{
	"doorbell":       "门口",
	"outdoor_high":   "庭院/车道",
	"outdoor_side":   "侧院",
	"indoor_living":  "客厅",
	"indoor_hall":    "门厅",
	"indoor_kitchen": "厨房",
	"indoor_bedroom": "卧室",
}

// PlaceName returns the semantic place for a camera id, falling back
// to the raw id for unmapped cameras.
func PlaceName(camera string) string {
	if place, ok := CamPlaces[camera]; ok {
		return place
	}
	return camera
}

var outdoorCameras = map[string]bool{
	"doorbell": true, "outdoor_high": true, "outdoor_side": true,
}

var indoorCameras = map[string]bool{
	"indoor_living": true, "indoor_hall": true,
	"indoor_kitchen": true, "indoor_bedroom": true,
}

// BuildContext renders the event as a timeline user prompt: one line
// per clip with a per-person activity summary, optional spatial and
// event-type hints, and the task instruction.
func BuildContext(ev *models.Event) string {
	var lines []string
	for ci := range ev.Clips {
		clip := &ev.Clips[ci]
		summary := summarizeClipPeople(clip)
		if summary == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s [%s]: %s",
			clip.Clip.StartTime.Format("15:04:05"), clip.Clip.Camera, summary))
	}

	var parts []string
	if len(lines) > 0 {
		parts = append(parts, "时间线：")
		parts = append(parts, lines...)
	}
	if hint := spatialHint(ev); hint != "" {
		parts = append(parts, "提示: "+hint)
	}
	if hint := eventTypeHint(DetectEventType(ev)); hint != "" {
		parts = append(parts, "提示: "+hint)
	}

	parts = append(parts,
		"任务：根据以上时间线信息，生成一条详细的中文日志，描述这个事件的完整过程。",
		"要求：",
		"- 描述人物的具体行为（出现、移动、停留等）",
		"- 说明位置变化（如果涉及多个摄像头）",
		"- 体现时间顺序（先做什么，后做什么）",
		"- 不要使用\"详情见视频\"等通用描述，必须基于时间线生成具体描述",
		"- 根据观察到的人物动作、特征和活动模式，自然地判断和描述事件类型（如：快递配送、服务维修、访客等）",
	)
	return strings.Join(parts, "\n")
}

// clipPresence accumulates one identity's appearances inside one clip.
type clipPresence struct {
	key        string
	label      string
	personID   int64
	count      int
	firstFrame int
	lastFrame  int
	bboxes     [][4]float32
}

func summarizeClipPeople(clip *models.ClipResult) string {
	byKey := make(map[string]*clipPresence)
	var order []string
	for fi, frame := range clip.Frames {
		for _, det := range frame {
			key := models.DetectionKey(det) + "/" + det.Label
			p := byKey[key]
			if p == nil {
				p = &clipPresence{
					key: key, label: det.Label, personID: det.PersonID,
					firstFrame: fi, lastFrame: fi,
				}
				byKey[key] = p
				order = append(order, key)
			}
			p.count++
			if fi < p.firstFrame {
				p.firstFrame = fi
			}
			if fi > p.lastFrame {
				p.lastFrame = fi
			}
			p.bboxes = append(p.bboxes, det.BBox)
		}
	}
	if len(byKey) == 0 {
		return ""
	}

	var descs []string
	seen := make(map[string]bool)
	for _, key := range order {
		desc := describePresence(byKey[key], clip.Clip.Camera)
		if !seen[desc] {
			seen[desc] = true
			descs = append(descs, desc)
		}
	}
	return strings.Join(descs, "、")
}

func describePresence(p *clipPresence, camera string) string {
	var desc string
	switch p.label {
	case models.LabelFamily, models.LabelSuspectedFamily:
		if p.personID > 0 {
			desc = fmt.Sprintf("家人(Person_%d)", p.personID)
		} else {
			desc = "家人(未知)"
		}
	case models.LabelStranger:
		desc = "陌生人"
	default:
		desc = "未知人物"
	}

	frameSpan := p.lastFrame - p.firstFrame + 1
	moved := detectMovement(p.bboxes)

	var activity []string
	activity = append(activity, "在"+PlaceName(camera))
	switch activityLevel(p.count, frameSpan) {
	case "high":
		if moved {
			activity = append(activity, "持续活动并移动")
		} else {
			activity = append(activity, "持续停留")
		}
	case "medium":
		if moved {
			activity = append(activity, "活动并移动")
		} else {
			activity = append(activity, "短暂停留")
		}
	default:
		activity = append(activity, "短暂出现")
	}
	// Frames are sampled at about one per second, so the span doubles
	// as a duration estimate. Short spans are noise and stay unstated.
	if frameSpan >= 10 {
		activity = append(activity, fmt.Sprintf("约%d秒", frameSpan))
	}
	return desc + "，" + strings.Join(activity, "")
}

// detectMovement reports whether bbox centers drifted by more than 20%
// of the first box's size in either axis.
func detectMovement(bboxes [][4]float32) bool {
	if len(bboxes) < 2 {
		return false
	}
	minX, maxX := float32(0), float32(0)
	minY, maxY := float32(0), float32(0)
	for i, b := range bboxes {
		cx := (b[0] + b[2]) / 2
		cy := (b[1] + b[3]) / 2
		if i == 0 {
			minX, maxX, minY, maxY = cx, cx, cy, cy
			continue
		}
		if cx < minX {
			minX = cx
		}
		if cx > maxX {
			maxX = cx
		}
		if cy < minY {
			minY = cy
		}
		if cy > maxY {
			maxY = cy
		}
	}
	w := bboxes[0][2] - bboxes[0][0]
	h := bboxes[0][3] - bboxes[0][1]
	if w <= 0 || h <= 0 {
		return false
	}
	return maxX-minX > w*0.2 || maxY-minY > h*0.2
}

func activityLevel(count, frameSpan int) string {
	density := 0.0
	if frameSpan > 0 {
		density = float64(count) / float64(frameSpan)
	}
	switch {
	case density > 0.8 && count > 10:
		return "high"
	case density > 0.5 && count > 5:
		return "medium"
	default:
		return "low"
	}
}

func spatialHint(ev *models.Event) string {
	outdoor, indoor := false, false
	for _, cam := range ev.Cameras {
		if outdoorCameras[cam] {
			outdoor = true
		}
		if indoorCameras[cam] {
			indoor = true
		}
	}
	if outdoor && indoor {
		return "人物从室外移动到室内"
	}
	return ""
}

// EventType classifies an event for prompt hints.
type EventType string

const (
	EventNormal    EventType = "normal"
	EventDelivery  EventType = "delivery"
	EventService   EventType = "service"
	EventVisitor   EventType = "visitor"
	EventDangerous EventType = "dangerous"
)

// DetectEventType applies coarse pattern heuristics on cameras,
// duration and people composition. The result only steers a soft
// prompt hint, never the stored labels.
func DetectEventType(ev *models.Event) EventType {
	hasStranger := false
	for key, act := range ev.People {
		if models.IsStrangerKey(key) || act.Label == models.LabelStranger {
			hasStranger = true
			break
		}
	}
	if !hasStranger {
		return EventNormal
	}

	doorbell := false
	indoor := false
	for _, cam := range ev.Cameras {
		if cam == "doorbell" {
			doorbell = true
		}
		if indoorCameras[cam] {
			indoor = true
		}
	}

	if doorbell && (ev.Duration > 0 && ev.Duration < 120 || len(ev.Clips) <= 3) {
		return EventDelivery
	}
	if ev.Duration > 300 {
		return EventService
	}
	if doorbell && indoor {
		return EventVisitor
	}
	return EventNormal
}

func eventTypeHint(t EventType) string {
	hints := map[EventType]string{
		EventDelivery:  "注意观察人物是否拿着物品、在门口短暂停留等特征",
		EventService:   "注意观察人物是否携带工具、长时间停留等特征",
		EventDangerous: "注意观察人物行为是否异常、是否有可疑动作等特征",
		EventVisitor:   "注意观察人物是否从门口进入室内等特征",
	}
	hint, ok := hints[t]
	if !ok {
		return ""
	}
	return "根据观察到的人物动作和活动模式，" + hint + "，自然地判断事件类型"
}

// BuildSystemPrompt returns the fixed reasoning persona plus a tone
// note derived from who appears in the event.
func BuildSystemPrompt(ev *models.Event) string {
	prompt := systemPromptBase
	switch eventComposition(ev) {
	case "family_only":
		prompt += "\n注意：本次事件涉及家人，请使用友好的语气。"
	case "stranger":
		prompt += "\n注意：本次事件涉及陌生人，请详细描述并保持警惕性。"
	case "mixed":
		prompt += "\n注意：本次事件涉及家人和陌生人，请区分描述。"
	}
	return prompt
}

func eventComposition(ev *models.Event) string {
	hasFamily, hasStranger := false, false
	keys := make([]string, 0, len(ev.People))
	for key := range ev.People {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		switch ev.People[key].Label {
		case models.LabelFamily, models.LabelSuspectedFamily:
			hasFamily = true
		case models.LabelStranger:
			hasStranger = true
		}
	}
	switch {
	case hasFamily && hasStranger:
		return "mixed"
	case hasStranger:
		return "stranger"
	default:
		return "family_only"
	}
}

const systemPromptBase = `你是一个智能家庭监控系统的日志生成助手。你的任务是根据监控视频的时间线信息，生成一条详细、准确的中文日志。

规则：
1. 必须使用中文
2. 时间误差不能超过1分钟
3. 如果是陌生人，必须描述衣着特征（如果信息可用）
4. 保持客观、详细，避免主观判断
5. 关注空间转移（如从"庭院"到"正门"意味着"回家"），详细描述人物的移动路径
6. 如果多个摄像头同时检测到同一人，合并为一条日志，但要说明在不同位置的出现
7. 输出格式：时间 + 详细的事件描述（50-200字）
8. 必须包含以下信息：
   - 人物的具体行为（出现、移动、停留、做什么等）
   - 位置变化（从哪个位置到哪个位置）
   - 时间顺序（先做什么，后做什么）
   - 如果有多个摄像头，说明在不同位置的活动
9. 禁止使用"详情见视频"、"详见视频"等通用描述，必须基于时间线信息生成具体描述
10. 严格基于提供的时间线信息生成日志，不要推断或添加时间线中未明确提到的人物或事件
11. 如果时间线中只提到"家人"，不要添加"陌生人"的描述；如果时间线中只提到"陌生人"，不要添加"家人"的描述
12. 必须详细描述人物的具体行为，例如拿着包裹、按门铃、等待、离开等`

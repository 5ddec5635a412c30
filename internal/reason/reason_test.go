package reason

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
	lastSys  string
	lastUser string
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	f.calls++
	f.lastSys = system
	f.lastUser = user
	return f.response, f.err
}

var eventStart = time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)

func familyEvent() *models.Event {
	det := models.Detection{
		FrameIndex: 0,
		BBox:       [4]float32{100, 100, 200, 300},
		Confidence: 0.9,
		PersonID:   1,
		PersonName: "dad",
		Label:      models.LabelFamily,
		Method:     models.MethodFace,
	}
	return &models.Event{
		StartTime: eventStart,
		EndTime:   eventStart.Add(10 * time.Second),
		Duration:  10,
		Cameras:   []string{"doorbell"},
		Clips: []models.ClipResult{{
			Clip: models.Clip{
				VideoPath: "a.mp4", Camera: "doorbell",
				StartTime: eventStart, Duration: 10,
			},
			Frames: [][]models.Detection{{det}},
			FrameW: 1920, FrameH: 1080,
		}},
		People: map[string]*models.PersonActivity{
			"person_1": {
				Label: models.LabelFamily, FirstSeen: eventStart, LastSeen: eventStart,
				Cameras: map[string]bool{"doorbell": true}, Detections: 1,
			},
		},
	}
}

func TestSummarizeSkipsLLMWhenNobodyPresent(t *testing.T) {
	client := &fakeLLM{}
	r := NewReasoner(client, config.LLMConfig{})
	ev := &models.Event{StartTime: eventStart, Cameras: []string{"doorbell"}}

	require.NoError(t, r.Summarize(context.Background(), ev))
	assert.Equal(t, NoPersonSummary, ev.Summary)
	assert.Zero(t, client.calls)
}

func TestSummarizeAcceptsGroundedOutput(t *testing.T) {
	client := &fakeLLM{response: "09:00，家人(Person_1)在门口出现并停留约10秒后离开。"}
	r := NewReasoner(client, config.LLMConfig{})
	ev := familyEvent()

	require.NoError(t, r.Summarize(context.Background(), ev))
	assert.Equal(t, client.response, ev.Summary)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.lastUser, "时间线：")
	assert.Contains(t, client.lastUser, "[doorbell]")
	assert.Contains(t, client.lastSys, "必须使用中文")
}

func TestSummarizeReplacesHallucinatedStranger(t *testing.T) {
	client := &fakeLLM{response: "09:00，一名可疑陌生人在门口徘徊。"}
	r := NewReasoner(client, config.LLMConfig{})
	ev := familyEvent()

	require.NoError(t, r.Summarize(context.Background(), ev))
	assert.NotContains(t, ev.Summary, "陌生人")
	assert.Contains(t, ev.Summary, "家人(Person_1)")
}

func TestSummarizeFallsBackOnLLMError(t *testing.T) {
	client := &fakeLLM{err: errors.New("upstream down")}
	r := NewReasoner(client, config.LLMConfig{})
	ev := familyEvent()

	require.NoError(t, r.Summarize(context.Background(), ev))
	assert.Contains(t, ev.Summary, "家人(Person_1)在门口")
}

func TestBuildContextTimelineLine(t *testing.T) {
	ev := familyEvent()
	text := BuildContext(ev)

	assert.Contains(t, text, "- 09:00:00 [doorbell]: 家人(Person_1)，在门口短暂出现")
	assert.Contains(t, text, "任务：根据以上时间线信息")
}

func TestBuildContextSpatialHint(t *testing.T) {
	ev := familyEvent()
	ev.Cameras = []string{"doorbell", "indoor_living"}
	assert.Contains(t, BuildContext(ev), "人物从室外移动到室内")
}

func TestDetectMovementThreshold(t *testing.T) {
	stay := [][4]float32{{100, 100, 200, 300}, {105, 102, 205, 302}}
	assert.False(t, detectMovement(stay))

	walk := [][4]float32{{100, 100, 200, 300}, {150, 100, 250, 300}}
	assert.True(t, detectMovement(walk))
}

func TestActivityLevels(t *testing.T) {
	assert.Equal(t, "high", activityLevel(15, 15))
	assert.Equal(t, "medium", activityLevel(6, 10))
	assert.Equal(t, "low", activityLevel(2, 10))
}

func TestCleanMarkup(t *testing.T) {
	got := CleanMarkup("**09:00** 家人在*门口*出现 `详细`\n\n\n\n结束")
	assert.Equal(t, "09:00 家人在门口出现 详细\n\n结束", got)
}

func TestValidateAllowsNegatedMention(t *testing.T) {
	timeline := "- 09:00:00 [doorbell]: 家人(Person_1)，在门口短暂出现"
	ev := familyEvent()
	out := ValidateSummary("09:00，家人(Person_1)出现，未发现陌生人。", timeline, ev)
	assert.Contains(t, out, "未发现陌生人")
}

func TestFallbackSummaryNoPeople(t *testing.T) {
	ev := &models.Event{StartTime: eventStart, Cameras: []string{"doorbell", "outdoor_high", "outdoor_side"}}
	got := FallbackSummary(ev)
	assert.Equal(t, "09:00，在doorbell、outdoor_high等3个位置未检测到人员活动。", got)
}

func TestClassifierDeliveryCues(t *testing.T) {
	c := NewClassifier(nil, nil)
	assert.Equal(t, models.LabelDelivery, c.Classify("一名快递员拿着包裹在门口投递", models.LabelStranger))
	assert.Equal(t, models.LabelService, c.Classify("维修工携带工具箱进行检修", models.LabelStranger))
	assert.Equal(t, models.LabelStranger, c.Classify("有人在院子里走动", models.LabelStranger))
}

func TestClassifierConfiguredCues(t *testing.T) {
	c := NewClassifier([]string{`披萨`}, nil)
	assert.Equal(t, models.LabelDelivery, c.Classify("有人送披萨上门", models.LabelStranger))
	assert.Equal(t, models.LabelStranger, c.Classify("一名快递员出现", models.LabelStranger))
}

func TestApplyOverridesKeepsFamilyWithoutStrongEvidence(t *testing.T) {
	c := NewClassifier(nil, nil)
	ev := familyEvent()
	c.ApplyOverrides(ev, "家人(Person_1)在门口等待并进入客厅。")
	assert.Empty(t, ev.RoleOverrides[models.KnownPersonKey(1)])
}

func TestApplyOverridesFamilyWithParcel(t *testing.T) {
	c := NewClassifier(nil, nil)
	ev := familyEvent()
	c.ApplyOverrides(ev, "家人(Person_1)拿着大盒子的包裹完成投递并签收，像快递员一样送快递。")
	assert.Equal(t, models.LabelDelivery, ev.RoleOverrides[models.KnownPersonKey(1)])
}

func TestApplyOverridesStrangerDelivery(t *testing.T) {
	c := NewClassifier(nil, nil)
	ev := familyEvent()
	key := "stranger_ab12cd34"
	ev.People = map[string]*models.PersonActivity{
		key: {Label: models.LabelStranger, Cameras: map[string]bool{"doorbell": true}, Detections: 2},
	}
	c.ApplyOverrides(ev, "一名陌生人拿着快递在门口投递包裹。")
	assert.Equal(t, models.LabelDelivery, ev.RoleOverrides[key])
}

func TestDetectEventTypeDelivery(t *testing.T) {
	ev := familyEvent()
	ev.People["stranger_ab12cd34"] = &models.PersonActivity{
		Label: models.LabelStranger, Cameras: map[string]bool{"doorbell": true},
	}
	ev.Duration = 45
	assert.Equal(t, EventDelivery, DetectEventType(ev))
}

func TestDetectEventTypeNormalForFamilyOnly(t *testing.T) {
	assert.Equal(t, EventNormal, DetectEventType(familyEvent()))
}

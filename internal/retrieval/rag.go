package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/your-org/homewatch/internal/llm"
)

const (
	ragTemperature = 0.3
	ragMaxTokens   = 512
	maxPromptItems = 3
)

// NoRecordsAnswer is returned without calling the model when retrieval
// finds nothing.
const NoRecordsAnswer = "抱歉，我没有找到与您的问题相关的记录。请尝试调整查询条件，比如：\n- 检查日期是否正确\n- 确认人物名称\n- 使用不同的关键词"

// Answer is the synthesized response.
type Answer struct {
	Answer        string   `json:"answer"`
	EvidenceCount int      `json:"evidence_count"`
	HasImages     bool     `json:"has_images"`
	Images        []string `json:"images,omitempty"`
}

// Synthesizer composes the final answer from retrieved evidence.
type Synthesizer struct {
	client      llm.Client
	maxEvidence int
}

func NewSynthesizer(client llm.Client, maxEvidence int) *Synthesizer {
	if maxEvidence <= 0 {
		maxEvidence = 5
	}
	return &Synthesizer{client: client, maxEvidence: maxEvidence}
}

// Synthesize answers the question from the evidence. Zero evidence
// short-circuits to the fixed no-records answer; model failures fall
// back to stitching the top event descriptions.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, evidence []Evidence, q Query) Answer {
	if len(evidence) == 0 {
		return Answer{Answer: NoRecordsAnswer}
	}

	images := collectImages(evidence)
	text, err := s.client.Generate(ctx,
		buildRAGSystemPrompt(q.Intent),
		buildRAGUserPrompt(question, evidence, s.maxEvidence),
		ragTemperature, ragMaxTokens)
	if err != nil {
		slog.Warn("rag synthesis failed, stitching evidence", "error", err)
		return Answer{
			Answer:        stitchEvidence(evidence),
			EvidenceCount: len(evidence),
		}
	}

	return Answer{
		Answer:        strings.TrimSpace(text),
		EvidenceCount: len(evidence),
		HasImages:     len(images) > 0,
		Images:        images,
	}
}

func buildRAGSystemPrompt(intent Intent) string {
	prompt := `你是一个智能家庭安防系统的问答助手。你的任务是根据检索到的数据库记录，回答用户的问题。

要求：
1. 必须使用中文回答
2. 基于检索到的证据，不要编造信息
3. 如果检索到的信息不足，明确说明
4. 回答要简洁、准确、人性化
5. 如果涉及时间，使用具体的时间格式（如"2025年9月1日 18:00"）`

	switch intent {
	case IntentAppearance:
		prompt += "\n6. 如果用户询问衣着，基于检索到的外观特征描述（如果可用），或说明无法从当前数据中确定具体衣着。"
	case IntentTime:
		prompt += "\n6. 如果用户询问时间，提供具体的时间信息。"
	case IntentLocation:
		prompt += "\n6. 如果用户询问位置，提供具体的摄像头位置信息。"
	}
	return prompt
}

func buildRAGUserPrompt(question string, evidence []Evidence, maxItems int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "用户问题：%s\n\n检索到的证据：\n", question)

	shown := evidence
	if len(shown) > maxItems {
		shown = shown[:maxItems]
	}
	for idx, ev := range shown {
		switch ev.Type {
		case "summary":
			fmt.Fprintf(&b, "\n[%d] 每日总结:\n", idx+1)
			fmt.Fprintf(&b, "   日期: %s\n", ev.Summary.SummaryDate.Format("2006-01-02"))
			fmt.Fprintf(&b, "   内容: %s\n", ev.Summary.SummaryText)
		case "detail":
			fmt.Fprintf(&b, "\n[%d] 事件记录:\n", idx+1)
			fmt.Fprintf(&b, "   时间: %s\n", ev.Event.Event.StartTime.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(&b, "   位置: %s\n", ev.Event.Event.CameraLocation)
			fmt.Fprintf(&b, "   描述: %s\n", ev.Event.Event.LLMDescription)
			if len(ev.Event.Appearances) > 0 {
				b.WriteString("   涉及人物:\n")
				for _, ap := range ev.Event.Appearances {
					name := ap.PersonName
					if name == "" {
						name = fmt.Sprintf("Person_%d", ap.PersonID)
					}
					fmt.Fprintf(&b, "     - %s (识别方式: %s)\n", name, ap.MatchMethod)
				}
			}
		}
	}

	b.WriteString("\n请根据以上证据，回答用户的问题。")
	return b.String()
}

// stitchEvidence builds a deterministic answer from the top detail
// descriptions when the model is unavailable.
func stitchEvidence(evidence []Evidence) string {
	var lines []string
	for _, ev := range evidence {
		if ev.Type != "detail" || len(lines) >= maxPromptItems {
			continue
		}
		desc := ev.Event.Event.LLMDescription
		if desc == "" {
			desc = "无描述"
		}
		lines = append(lines, fmt.Sprintf("- %s: %s",
			ev.Event.Event.StartTime.Format("2006-01-02 15:04:05"), desc))
	}
	if len(lines) == 0 {
		for _, ev := range evidence {
			if ev.Type == "summary" && len(lines) < maxPromptItems {
				lines = append(lines, fmt.Sprintf("- %s: %s",
					ev.Summary.SummaryDate.Format("2006-01-02"), ev.Summary.SummaryText))
			}
		}
	}
	return fmt.Sprintf("根据检索到的 %d 条记录，相关信息如下：\n%s",
		len(evidence), strings.Join(lines, "\n"))
}

func collectImages(evidence []Evidence) []string {
	var images []string
	for _, ev := range evidence {
		images = append(images, ev.Images...)
	}
	return images
}

// Package summary generates and stores one narrative record per
// calendar date from that day's persisted events.
package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/your-org/homewatch/internal/llm"
	"github.com/your-org/homewatch/internal/models"
)

// Store is the storage surface the summarizer needs.
// *storage.PostgresStore satisfies it; tests fake it.
type Store interface {
	GetDailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error)
	EventsByDate(ctx context.Context, date time.Time) ([]models.StoredEvent, error)
	UpsertDailySummary(ctx context.Context, date time.Time, text string, totalEvents int) (int64, error)
	DistinctEventDates(ctx context.Context) ([]time.Time, error)
}

const (
	dailyTemperature = 0.3
	dailyMaxTokens   = 512
)

const systemPrompt = `你是一个专业的家庭安防分析师。你的任务是根据提供的事件日志，生成每日活动总结。

要求：
1. 规律分析：识别家人的出门和回家时间
2. 安全提醒：明确提及任何与陌生人（未知人员）的互动
3. 异常标记：突出敏感时段的活动（如 00:00 - 05:00）
4. 简洁性：不要列举每个事件，而是将相似事件归类
5. 客观性：基于提供的时间线信息，不要推断或添加未明确提到的事件

输出格式（中文）：
- [家人动态]: ...
- [访客/陌生人]: ... (如果没有，说"无")
- [异常关注]: ... (如果没有，说"无")`

// Summarizer builds daily narratives over stored events.
type Summarizer struct {
	store  Store
	client llm.Client
}

func NewSummarizer(store Store, client llm.Client) *Summarizer {
	return &Summarizer{store: store, client: client}
}

// SummarizeDay writes the narrative for one date and returns the row
// id. Without force an already summarized date is left byte-identical
// and its existing id returned. A date without events is a no-op.
func (s *Summarizer) SummarizeDay(ctx context.Context, date time.Time, force bool) (int64, error) {
	if !force {
		existing, err := s.store.GetDailySummary(ctx, date)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			slog.Info("daily summary already exists, skipping",
				"date", date.Format("2006-01-02"), "id", existing.ID)
			return existing.ID, nil
		}
	}

	events, err := s.store.EventsByDate(ctx, date)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		slog.Info("no events for date, skipping summary", "date", date.Format("2006-01-02"))
		return 0, nil
	}

	text := s.generate(ctx, date, events)
	id, err := s.store.UpsertDailySummary(ctx, date, text, len(events))
	if err != nil {
		return 0, err
	}
	slog.Info("daily summary stored",
		"date", date.Format("2006-01-02"), "id", id, "events", len(events))
	return id, nil
}

// SummarizeAll runs SummarizeDay over every distinct event date.
func (s *Summarizer) SummarizeAll(ctx context.Context, force bool) (int, error) {
	dates, err := s.store.DistinctEventDates(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, date := range dates {
		if _, err := s.SummarizeDay(ctx, date, force); err != nil {
			return done, fmt.Errorf("summarize %s: %w", date.Format("2006-01-02"), err)
		}
		done++
	}
	return done, nil
}

func (s *Summarizer) generate(ctx context.Context, date time.Time, events []models.StoredEvent) string {
	timeline := FormatTimeline(events)
	dateISO := date.Format("2006-01-02")
	dateCN := fmt.Sprintf("%d年%02d月%02d日", date.Year(), date.Month(), date.Day())

	user := fmt.Sprintf(`以下是 %s (%s) 的完整事件时间线：

%s

请根据以上时间线信息，生成一条详细的每日活动总结。要求：
1. 提取家人的日常规律（出门时间、回家时间等）
2. 明确标记任何陌生人或访客的出现
3. 关注异常时段的活动
4. 使用简洁的语言，不要重复列举每个事件
5. 严格按照输出格式生成总结

输出格式（中文）：
- [家人动态]: ...
- [访客/陌生人]: ... (如果没有，说"无")
- [异常关注]: ... (如果没有，说"无")`, dateCN, dateISO, timeline)

	text, err := s.client.Generate(ctx, systemPrompt, user, dailyTemperature, dailyMaxTokens)
	if err != nil {
		slog.Warn("daily summary generation failed, using fallback",
			"date", dateISO, "error", err)
		return fmt.Sprintf("%s，共记录 %d 个事件。由于系统限制，无法生成详细总结，详情请查看事件日志。",
			dateCN, len(events))
	}
	return strings.TrimSpace(text)
}

// FormatTimeline renders one line per event for the summary prompt.
func FormatTimeline(events []models.StoredEvent) string {
	lines := make([]string, 0, len(events))
	for _, ev := range events {
		desc := ev.LLMDescription
		if desc == "" {
			desc = "无描述"
		}
		lines = append(lines, fmt.Sprintf("- [%s] [%s]: %s",
			ev.StartTime.Format("15:04:05"), ev.CameraLocation, desc))
	}
	return strings.Join(lines, "\n")
}

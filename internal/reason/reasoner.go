package reason

import (
	"context"
	"log/slog"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/llm"
	"github.com/your-org/homewatch/internal/models"
)

// NoPersonSummary is stored for events with nobody in frame.
const NoPersonSummary = "该视频中无人出现"

const (
	summaryTemperature = 0.2
	summaryMaxTokens   = 256
)

// Reasoner produces the stored description for each event.
type Reasoner struct {
	client     llm.Client
	classifier *Classifier
}

func NewReasoner(client llm.Client, cfg config.LLMConfig) *Reasoner {
	return &Reasoner{
		client:     client,
		classifier: NewClassifier(cfg.DeliveryCues, cfg.ServiceCues),
	}
}

// Summarize fills ev.Summary and ev.RoleOverrides. Events without any
// people skip the model entirely. Model failures degrade to the
// deterministic fallback; Summarize itself only fails on cancellation.
func (r *Reasoner) Summarize(ctx context.Context, ev *models.Event) error {
	if len(ev.People) == 0 {
		ev.Summary = NoPersonSummary
		return nil
	}

	timeline := BuildContext(ev)
	system := BuildSystemPrompt(ev)

	raw, err := r.client.Generate(ctx, system, timeline, summaryTemperature, summaryMaxTokens)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("event summary generation failed, using fallback",
			"start_time", ev.StartTime, "error", err)
		raw = ""
	}

	ev.Summary = ValidateSummary(raw, timeline, ev)
	r.classifier.ApplyOverrides(ev, ev.Summary)
	return nil
}

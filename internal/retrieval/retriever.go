package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
)

// Evidence is one retrieved record, either a daily summary or a
// detailed event with its appearances.
type Evidence struct {
	Type    string // "summary" or "detail"
	Summary *models.DailySummary
	Event   *storage.EventWithAppearances
	Images  []string
}

// EventStore is the storage surface the retriever needs.
// *storage.PostgresStore satisfies it; tests fake it.
type EventStore interface {
	QueryEvents(ctx context.Context, f storage.EventFilter) ([]storage.EventWithAppearances, error)
	GetDailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error)
	SummariesInRange(ctx context.Context, from, to time.Time) ([]models.DailySummary, error)
	LatestSummaries(ctx context.Context, n int) ([]models.DailySummary, error)
}

// Retriever fetches evidence matching a parsed query.
type Retriever struct {
	store EventStore
	cfg   config.RetrievalConfig
}

func NewRetriever(store EventStore, cfg config.RetrievalConfig) *Retriever {
	return &Retriever{store: store, cfg: cfg}
}

// Retrieve runs the summary or detail path. The detail path retries
// once without the action keyword when the filtered query is empty.
func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]Evidence, error) {
	if q.Type == QuerySummary {
		return r.retrieveSummaries(ctx, q)
	}
	return r.retrieveEvents(ctx, q)
}

func (r *Retriever) retrieveSummaries(ctx context.Context, q Query) ([]Evidence, error) {
	var summaries []models.DailySummary
	switch {
	case q.Date != nil:
		s, err := r.store.GetDailySummary(ctx, *q.Date)
		if err != nil {
			return nil, err
		}
		if s != nil {
			summaries = []models.DailySummary{*s}
		}
	case q.DateFrom != nil && q.DateTo != nil:
		var err error
		summaries, err = r.store.SummariesInRange(ctx, *q.DateFrom, *q.DateTo)
		if err != nil {
			return nil, err
		}
	default:
		var err error
		summaries, err = r.store.LatestSummaries(ctx, r.cfg.MaxSummaries)
		if err != nil {
			return nil, err
		}
	}

	evidence := make([]Evidence, 0, len(summaries))
	for i := range summaries {
		evidence = append(evidence, Evidence{Type: "summary", Summary: &summaries[i]})
	}
	return evidence, nil
}

func (r *Retriever) retrieveEvents(ctx context.Context, q Query) ([]Evidence, error) {
	filter := storage.EventFilter{
		PersonID: q.PersonID,
		Keyword:  q.Keyword,
		Limit:    r.cfg.MaxEvents,
	}
	if q.Date != nil {
		filter.DateFrom, filter.DateTo = q.Date, q.Date
	} else if q.DateFrom != nil {
		filter.DateFrom, filter.DateTo = q.DateFrom, q.DateTo
	}

	events, err := r.store.QueryEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 && filter.Keyword != "" {
		slog.Info("keyword filter empty, loosening query", "keyword", filter.Keyword)
		filter.Keyword = ""
		events, err = r.store.QueryEvents(ctx, filter)
		if err != nil {
			return nil, err
		}
	}

	evidence := make([]Evidence, 0, len(events))
	for i := range events {
		evidence = append(evidence, Evidence{Type: "detail", Event: &events[i]})
	}
	return evidence, nil
}

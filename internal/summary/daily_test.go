package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/models"
)

type fakeLLM struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeLLM) Generate(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	f.calls++
	f.lastUser = user
	return f.response, f.err
}

type fakeStore struct {
	summaries map[string]*models.DailySummary
	events    map[string][]models.StoredEvent
	dates     []time.Time

	upserts int
	nextID  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		summaries: make(map[string]*models.DailySummary),
		events:    make(map[string][]models.StoredEvent),
		nextID:    1,
	}
}

func (f *fakeStore) GetDailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	return f.summaries[date.Format("2006-01-02")], nil
}

func (f *fakeStore) EventsByDate(ctx context.Context, date time.Time) ([]models.StoredEvent, error) {
	return f.events[date.Format("2006-01-02")], nil
}

func (f *fakeStore) UpsertDailySummary(ctx context.Context, date time.Time, text string, totalEvents int) (int64, error) {
	f.upserts++
	key := date.Format("2006-01-02")
	existing := f.summaries[key]
	if existing == nil {
		existing = &models.DailySummary{ID: f.nextID, SummaryDate: date}
		f.nextID++
		f.summaries[key] = existing
	}
	existing.SummaryText = text
	existing.TotalEvents = totalEvents
	existing.UpdatedAt = time.Now()
	return existing.ID, nil
}

func (f *fakeStore) DistinctEventDates(ctx context.Context) ([]time.Time, error) {
	return f.dates, nil
}

var day = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func seedEvents(store *fakeStore) {
	store.events["2025-09-01"] = []models.StoredEvent{
		{
			StartTime:      day.Add(9 * time.Hour),
			CameraLocation: "doorbell",
			LLMDescription: "09:00，家人(Person_1)在门口出现后离开。",
		},
		{
			StartTime:      day.Add(18 * time.Hour),
			CameraLocation: "doorbell,indoor_living",
			LLMDescription: "18:00，家人(Person_1)回家进入客厅。",
		},
	}
}

func TestSummarizeDayStoresNarrative(t *testing.T) {
	store := newFakeStore()
	seedEvents(store)
	client := &fakeLLM{response: "- [家人动态]: 早出晚归\n- [访客/陌生人]: 无\n- [异常关注]: 无"}
	s := NewSummarizer(store, client)

	id, err := s.SummarizeDay(context.Background(), day, false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
	assert.Equal(t, 1, client.calls)
	assert.Contains(t, client.lastUser, "2025年09月01日")
	assert.Contains(t, client.lastUser, "- [09:00:00] [doorbell]:")

	row := store.summaries["2025-09-01"]
	require.NotNil(t, row)
	assert.Equal(t, client.response, row.SummaryText)
	assert.Equal(t, 2, row.TotalEvents)
}

func TestSummarizeDayIdempotentWithoutForce(t *testing.T) {
	store := newFakeStore()
	seedEvents(store)
	client := &fakeLLM{response: "- [家人动态]: 早出晚归\n- [访客/陌生人]: 无\n- [异常关注]: 无"}
	s := NewSummarizer(store, client)

	first, err := s.SummarizeDay(context.Background(), day, false)
	require.NoError(t, err)
	text := store.summaries["2025-09-01"].SummaryText

	second, err := s.SummarizeDay(context.Background(), day, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.upserts, "second run must not rewrite the row")
	assert.Equal(t, text, store.summaries["2025-09-01"].SummaryText)

	third, err := s.SummarizeDay(context.Background(), day, true)
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, 2, store.upserts, "force rewrites the row")
}

func TestSummarizeDayNoEventsIsNoOp(t *testing.T) {
	store := newFakeStore()
	client := &fakeLLM{}
	s := NewSummarizer(store, client)

	id, err := s.SummarizeDay(context.Background(), day, false)
	require.NoError(t, err)
	assert.Zero(t, id)
	assert.Zero(t, client.calls)
	assert.Zero(t, store.upserts)
}

func TestSummarizeDayFallbackOnLLMError(t *testing.T) {
	store := newFakeStore()
	seedEvents(store)
	client := &fakeLLM{err: errors.New("upstream down")}
	s := NewSummarizer(store, client)

	_, err := s.SummarizeDay(context.Background(), day, false)
	require.NoError(t, err)
	assert.Contains(t, store.summaries["2025-09-01"].SummaryText, "共记录 2 个事件")
}

func TestSummarizeAllSkipsSummarizedDates(t *testing.T) {
	store := newFakeStore()
	seedEvents(store)
	day2 := day.AddDate(0, 0, 1)
	store.events["2025-09-02"] = []models.StoredEvent{{
		StartTime:      day2.Add(10 * time.Hour),
		CameraLocation: "outdoor_high",
		LLMDescription: "10:00，陌生人在庭院出现。",
	}}
	store.dates = []time.Time{day, day2}
	store.summaries["2025-09-01"] = &models.DailySummary{ID: 7, SummaryDate: day}

	client := &fakeLLM{response: "- [家人动态]: 无\n- [访客/陌生人]: 陌生人一次\n- [异常关注]: 无"}
	s := NewSummarizer(store, client)

	done, err := s.SummarizeAll(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, done)
	assert.Equal(t, 1, client.calls, "existing date skipped without force")
}

func TestFormatTimeline(t *testing.T) {
	events := []models.StoredEvent{
		{StartTime: day.Add(9 * time.Hour), CameraLocation: "doorbell", LLMDescription: "家人出现"},
		{StartTime: day.Add(10 * time.Hour), CameraLocation: "indoor_living"},
	}
	got := FormatTimeline(events)
	assert.Equal(t, "- [09:00:00] [doorbell]: 家人出现\n- [10:00:00] [indoor_living]: 无描述", got)
}

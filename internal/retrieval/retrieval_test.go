package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
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
	persons   []models.Person
	events    []storage.EventWithAppearances
	summaries []models.DailySummary

	queryCalls   int
	lastFilter   storage.EventFilter
	firstKeyword string
}

func (f *fakeStore) FindPersonsByKeyword(ctx context.Context, keyword string) ([]models.Person, error) {
	var out []models.Person
	for _, p := range f.persons {
		if p.Notes != "" && containsAny(p.Notes, []string{keyword}) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	for i := range f.persons {
		if f.persons[i].ID == id {
			return &f.persons[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) QueryEvents(ctx context.Context, filter storage.EventFilter) ([]storage.EventWithAppearances, error) {
	f.queryCalls++
	if f.queryCalls == 1 {
		f.firstKeyword = filter.Keyword
	}
	f.lastFilter = filter
	if filter.Keyword != "" {
		return nil, nil
	}
	return f.events, nil
}

func (f *fakeStore) GetDailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	for i := range f.summaries {
		if f.summaries[i].SummaryDate.Equal(date) {
			return &f.summaries[i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) SummariesInRange(ctx context.Context, from, to time.Time) ([]models.DailySummary, error) {
	return f.summaries, nil
}

func (f *fakeStore) LatestSummaries(ctx context.Context, n int) ([]models.DailySummary, error) {
	if n < len(f.summaries) {
		return f.summaries[:n], nil
	}
	return f.summaries, nil
}

var day = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)

func fixedParser(store *fakeStore) *Parser {
	p := NewParser(store)
	p.now = func() time.Time { return day.Add(12 * time.Hour) }
	return p
}

func TestParseExplicitDateAndIntent(t *testing.T) {
	p := fixedParser(&fakeStore{})
	q := p.Parse(context.Background(), "9月1日有什么活动？总结一下")

	require.NotNil(t, q.Date)
	assert.Equal(t, "2025-09-01", q.Date.Format("2006-01-02"))
	assert.Equal(t, IntentSummary, q.Intent)
	assert.Equal(t, QuerySummary, q.Type)
}

func TestParseFullDate(t *testing.T) {
	p := fixedParser(&fakeStore{})
	q := p.Parse(context.Background(), "2024年12月31日谁来过")
	require.NotNil(t, q.Date)
	assert.Equal(t, "2024-12-31", q.Date.Format("2006-01-02"))
}

func TestParseRelativeDates(t *testing.T) {
	p := fixedParser(&fakeStore{})

	q := p.Parse(context.Background(), "今天家里有人吗")
	require.NotNil(t, q.Date)
	assert.Equal(t, "2025-09-01", q.Date.Format("2006-01-02"))

	q = p.Parse(context.Background(), "昨天有陌生人吗")
	require.NotNil(t, q.Date)
	assert.Equal(t, "2025-08-31", q.Date.Format("2006-01-02"))
}

func TestParseDateRange(t *testing.T) {
	p := fixedParser(&fakeStore{})
	q := p.Parse(context.Background(), "9月1日到9月3日的概况")

	require.NotNil(t, q.DateFrom)
	require.NotNil(t, q.DateTo)
	assert.Equal(t, "2025-09-01", q.DateFrom.Format("2006-01-02"))
	assert.Equal(t, "2025-09-03", q.DateTo.Format("2006-01-02"))
	assert.Equal(t, QuerySummary, q.Type)
}

func TestParsePersonID(t *testing.T) {
	store := &fakeStore{persons: []models.Person{{ID: 21, Name: "dad", Role: models.RoleOwner}}}
	p := fixedParser(store)

	q := p.Parse(context.Background(), "Person_21 什么时候回家的")
	assert.Equal(t, int64(21), q.PersonID)
	assert.Equal(t, "dad", q.PersonName)
	assert.Equal(t, "回家", q.Keyword)
	assert.Equal(t, IntentTime, q.Intent)
}

func TestParsePersonAlias(t *testing.T) {
	store := &fakeStore{persons: []models.Person{{ID: 1, Name: "dad", Role: models.RoleOwner, Notes: "爸爸"}}}
	p := fixedParser(store)

	q := p.Parse(context.Background(), "爸爸今天出门了吗")
	assert.Equal(t, int64(1), q.PersonID)
	assert.Equal(t, "出门", q.Keyword)
}

func TestRetrieveLoosensKeywordFilter(t *testing.T) {
	store := &fakeStore{events: []storage.EventWithAppearances{{
		Event: models.StoredEvent{ID: uuid.New(), StartTime: day.Add(9 * time.Hour)},
	}}}
	r := NewRetriever(store, config.RetrievalConfig{MaxEvents: 50})

	evidence, err := r.Retrieve(context.Background(), Query{Type: QueryDetail, Keyword: "回家"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.queryCalls)
	assert.Equal(t, "回家", store.firstKeyword)
	assert.Empty(t, store.lastFilter.Keyword)
	assert.Len(t, evidence, 1)
}

func TestRetrieveSummaryByDate(t *testing.T) {
	store := &fakeStore{summaries: []models.DailySummary{{ID: 1, SummaryDate: day, SummaryText: "总结"}}}
	r := NewRetriever(store, config.RetrievalConfig{MaxSummaries: 10})

	d := day
	evidence, err := r.Retrieve(context.Background(), Query{Type: QuerySummary, Date: &d})
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.Equal(t, "summary", evidence[0].Type)
	assert.Equal(t, "总结", evidence[0].Summary.SummaryText)
}

func TestSynthesizeNoEvidenceSkipsLLM(t *testing.T) {
	client := &fakeLLM{}
	s := NewSynthesizer(client, 5)

	answer := s.Synthesize(context.Background(), "9月1日有什么活动？", nil, Query{})
	assert.Equal(t, NoRecordsAnswer, answer.Answer)
	assert.Zero(t, answer.EvidenceCount)
	assert.Zero(t, client.calls, "no-evidence answers must not call the model")
}

func TestAskEmptyStoreReturnsNoRecords(t *testing.T) {
	client := &fakeLLM{}
	store := &fakeStore{}
	e := &Engine{
		parser:       fixedParser(store),
		retriever:    NewRetriever(store, config.RetrievalConfig{MaxEvents: 50}),
		materializer: NewMaterializer(nil, ""),
		synthesizer:  NewSynthesizer(client, 5),
	}

	answer, err := e.Ask(context.Background(), "9月1日有什么活动？")
	require.NoError(t, err)
	assert.Equal(t, NoRecordsAnswer, answer.Answer)
	assert.Zero(t, client.calls)
}

func TestSynthesizeBuildsEvidencePrompt(t *testing.T) {
	client := &fakeLLM{response: "家人9月1日18:00回家。"}
	s := NewSynthesizer(client, 5)
	evidence := []Evidence{{
		Type: "detail",
		Event: &storage.EventWithAppearances{
			Event: models.StoredEvent{
				StartTime:      day.Add(18 * time.Hour),
				CameraLocation: "doorbell",
				LLMDescription: "18:00，家人(Person_1)回家。",
			},
			Appearances: []models.StoredAppearance{{
				PersonID: 1, PersonName: "dad", MatchMethod: models.MatchFace,
			}},
		},
	}}

	answer := s.Synthesize(context.Background(), "爸爸几点回家", evidence, Query{Intent: IntentTime})
	assert.Equal(t, client.response, answer.Answer)
	assert.Equal(t, 1, answer.EvidenceCount)
	assert.Contains(t, client.lastUser, "事件记录")
	assert.Contains(t, client.lastUser, "dad (识别方式: face)")
}

func TestSynthesizeFallbackStitchesDescriptions(t *testing.T) {
	client := &fakeLLM{err: errors.New("upstream down")}
	s := NewSynthesizer(client, 5)
	evidence := []Evidence{{
		Type: "detail",
		Event: &storage.EventWithAppearances{
			Event: models.StoredEvent{
				StartTime:      day.Add(18 * time.Hour),
				LLMDescription: "18:00，家人回家。",
			},
		},
	}}

	answer := s.Synthesize(context.Background(), "爸爸几点回家", evidence, Query{})
	assert.Contains(t, answer.Answer, "根据检索到的 1 条记录")
	assert.Contains(t, answer.Answer, "18:00，家人回家。")
}

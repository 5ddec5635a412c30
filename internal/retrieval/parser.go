// Package retrieval answers natural-language questions over the event
// store: parse, retrieve, materialize evidence, synthesize.
package retrieval

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/your-org/homewatch/internal/models"
)

// Intent classifies what the question asks for.
type Intent string

const (
	IntentAppearance Intent = "describe_appearance"
	IntentTime       Intent = "query_time"
	IntentLocation   Intent = "query_location"
	IntentSummary    Intent = "query_summary"
	IntentGeneral    Intent = "general"
)

// QueryType selects the retrieval path.
type QueryType string

const (
	QuerySummary QueryType = "summary"
	QueryDetail  QueryType = "detail"
)

// Query is the structured form of a user question.
type Query struct {
	PersonID   int64
	PersonName string
	Date       *time.Time
	DateFrom   *time.Time
	DateTo     *time.Time
	Keyword    string
	Intent     Intent
	Type       QueryType
}

// PersonLookup resolves person references against the store. Only the
// parser's person extraction needs it.
type PersonLookup interface {
	FindPersonsByKeyword(ctx context.Context, keyword string) ([]models.Person, error)
	GetPerson(ctx context.Context, id int64) (*models.Person, error)
}

// personAliases maps role words in questions to search keywords.
var personAliases = [][]string{
	{"爸爸", "爸", "father", "dad"},
	{"妈妈", "妈", "mother", "mom"},
	{"家人", "家庭成员", "family"},
}

var actionKeywords = []struct {
	normalized string
	cues       []string
}{
	{"回家", []string{"回家", "回来", "返回", "到家", "进门"}},
	{"出门", []string{"出门", "出去", "离开", "外出"}},
	{"出现", []string{"出现", "看到", "检测到"}},
}

var intentCues = []struct {
	intent Intent
	cues   []string
}{
	{IntentAppearance, []string{"穿什么", "穿着", "衣服", "衣着", "打扮", "穿"}},
	{IntentTime, []string{"什么时候", "几点", "何时", "时间"}},
	{IntentLocation, []string{"在哪里", "哪个位置", "什么地方", "位置"}},
	{IntentSummary, []string{"总结", "概况", "大概", "规律"}},
}

var (
	personIDRe  = regexp.MustCompile(`(?i)Person[_\s]*(\d+)`)
	fullDateRe  = regexp.MustCompile(`(\d{4})[年\-/](\d{1,2})[月\-/](\d{1,2})[日号]?`)
	shortDateRe = regexp.MustCompile(`(\d{1,2})[月\-/](\d{1,2})[日号]`)
	rangeRe     = regexp.MustCompile(`(\d{1,2})[月\-/](\d{1,2})[日号]\s*[到至~\-]\s*(\d{1,2})[月\-/](\d{1,2})[日号]`)
)

// Parser turns questions into structured queries.
type Parser struct {
	persons PersonLookup
	now     func() time.Time
}

func NewParser(persons PersonLookup) *Parser {
	return &Parser{persons: persons, now: time.Now}
}

// Parse extracts person, date, action keyword, intent and query type.
// Person resolution degrades gracefully: an unresolvable reference
// leaves PersonID zero and retrieval proceeds unfiltered.
func (p *Parser) Parse(ctx context.Context, question string) Query {
	q := Query{Intent: IntentGeneral, Type: QueryDetail}

	p.extractPerson(ctx, question, &q)
	p.extractDate(question, &q)

	for _, action := range actionKeywords {
		if containsAny(question, action.cues) {
			q.Keyword = action.normalized
			break
		}
	}

	for _, ic := range intentCues {
		if containsAny(question, ic.cues) {
			q.Intent = ic.intent
			break
		}
	}

	if q.Intent == IntentSummary || strings.Contains(question, "总结") || strings.Contains(question, "概况") {
		q.Type = QuerySummary
	}
	return q
}

func (p *Parser) extractPerson(ctx context.Context, question string, q *Query) {
	if m := personIDRe.FindStringSubmatch(question); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && p.persons != nil {
			if person, err := p.persons.GetPerson(ctx, id); err == nil && person != nil {
				q.PersonID = person.ID
				q.PersonName = person.Name
				return
			}
		}
	}

	if p.persons == nil {
		return
	}
	for _, aliases := range personAliases {
		if !containsAny(question, aliases) {
			continue
		}
		for _, alias := range aliases {
			matches, err := p.persons.FindPersonsByKeyword(ctx, alias)
			if err != nil || len(matches) == 0 {
				continue
			}
			q.PersonID = matches[0].ID
			q.PersonName = matches[0].Name
			return
		}
	}
}

func (p *Parser) extractDate(question string, q *Query) {
	now := p.now()

	if m := rangeRe.FindStringSubmatch(question); m != nil {
		from := dateFromParts(now.Year(), m[1], m[2])
		to := dateFromParts(now.Year(), m[3], m[4])
		if from != nil && to != nil && !to.Before(*from) {
			q.DateFrom, q.DateTo = from, to
			return
		}
	}
	if m := fullDateRe.FindStringSubmatch(question); m != nil {
		year, err := strconv.Atoi(m[1])
		if err == nil {
			if d := dateFromParts(year, m[2], m[3]); d != nil {
				q.Date = d
				return
			}
		}
	}
	if m := shortDateRe.FindStringSubmatch(question); m != nil {
		if d := dateFromParts(now.Year(), m[1], m[2]); d != nil {
			q.Date = d
			return
		}
	}

	switch {
	case strings.Contains(question, "今天") || strings.Contains(question, "今日"):
		d := truncateDay(now)
		q.Date = &d
	case strings.Contains(question, "昨天") || strings.Contains(question, "昨日"):
		d := truncateDay(now.AddDate(0, 0, -1))
		q.Date = &d
	case strings.Contains(question, "前天"):
		d := truncateDay(now.AddDate(0, 0, -2))
		q.Date = &d
	}
}

func dateFromParts(year int, monthStr, dayStr string) *time.Time {
	month, err1 := strconv.Atoi(monthStr)
	day, err2 := strconv.Atoi(dayStr)
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day {
		return nil
	}
	return &d
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// String renders the query for logs.
func (q Query) String() string {
	var parts []string
	if q.PersonID > 0 {
		parts = append(parts, fmt.Sprintf("person=%d", q.PersonID))
	}
	if q.Date != nil {
		parts = append(parts, "date="+q.Date.Format("2006-01-02"))
	}
	if q.DateFrom != nil {
		parts = append(parts, fmt.Sprintf("range=%s..%s",
			q.DateFrom.Format("2006-01-02"), q.DateTo.Format("2006-01-02")))
	}
	if q.Keyword != "" {
		parts = append(parts, "keyword="+q.Keyword)
	}
	parts = append(parts, "intent="+string(q.Intent), "type="+string(q.Type))
	return strings.Join(parts, " ")
}

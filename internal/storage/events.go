package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/homewatch/internal/models"
)

// InsertEventTx writes the event row inside an event transaction.
func (s *PostgresStore) InsertEventTx(ctx context.Context, tx pgx.Tx, ev *models.StoredEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = time.Now()
	_, err := tx.Exec(ctx,
		`INSERT INTO event_logs (id, video_filename, start_time, camera_location, llm_description, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.VideoFilename, ev.StartTime, ev.CameraLocation, ev.LLMDescription, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// InsertAppearanceTx writes one appearance row inside an event transaction.
func (s *PostgresStore) InsertAppearanceTx(ctx context.Context, tx pgx.Tx, ap *models.StoredAppearance) error {
	vec := pgvector.NewVector(ap.BodyEmbedding)
	err := tx.QueryRow(ctx,
		`INSERT INTO event_appearances (event_id, person_id, match_method, body_embedding, keyframe_key)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		ap.EventID, ap.PersonID, ap.MatchMethod, vec, nullable(ap.KeyframeKey),
	).Scan(&ap.ID)
	if err != nil {
		return fmt.Errorf("insert appearance: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// EventsByDate returns the day's events ordered by start time.
func (s *PostgresStore) EventsByDate(ctx context.Context, date time.Time) ([]models.StoredEvent, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(video_filename, ''), start_time, camera_location, llm_description, created_at
		 FROM event_logs
		 WHERE start_time::date = $1::date
		 ORDER BY start_time`, date)
	if err != nil {
		return nil, fmt.Errorf("events by date: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// DistinctEventDates lists every calendar date with at least one event.
func (s *PostgresStore) DistinctEventDates(ctx context.Context) ([]time.Time, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT start_time::date AS d FROM event_logs ORDER BY d`)
	if err != nil {
		return nil, fmt.Errorf("distinct event dates: %w", err)
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// EventFilter narrows detail retrieval. Zero values mean "no filter".
type EventFilter struct {
	DateFrom *time.Time
	DateTo   *time.Time
	PersonID int64
	Keyword  string // case-insensitive match on llm_description
	Limit    int
}

// EventWithAppearances joins one event with its appearance rows.
type EventWithAppearances struct {
	Event       models.StoredEvent
	Appearances []models.StoredAppearance
}

// QueryEvents fetches events matching the filter, joined with their
// appearances and person names, ordered by start time.
func (s *PostgresStore) QueryEvents(ctx context.Context, f EventFilter) ([]EventWithAppearances, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}

	where := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if f.DateFrom != nil {
		where += fmt.Sprintf(" AND e.start_time::date >= $%d::date", argIdx)
		args = append(args, *f.DateFrom)
		argIdx++
	}
	if f.DateTo != nil {
		where += fmt.Sprintf(" AND e.start_time::date <= $%d::date", argIdx)
		args = append(args, *f.DateTo)
		argIdx++
	}
	if f.PersonID > 0 {
		where += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM event_appearances a WHERE a.event_id = e.id AND a.person_id = $%d)", argIdx)
		args = append(args, f.PersonID)
		argIdx++
	}
	if f.Keyword != "" {
		where += fmt.Sprintf(" AND e.llm_description ILIKE '%%' || $%d || '%%'", argIdx)
		args = append(args, f.Keyword)
		argIdx++
	}

	query := fmt.Sprintf(
		`SELECT id, COALESCE(video_filename, ''), start_time, camera_location, llm_description, created_at
		 FROM event_logs e %s ORDER BY e.start_time LIMIT $%d`, where, argIdx)
	args = append(args, f.Limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	events, err := scanEvents(rows)
	rows.Close()
	if err != nil {
		return nil, err
	}

	result := make([]EventWithAppearances, 0, len(events))
	for _, ev := range events {
		aps, err := s.appearancesForEvent(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		result = append(result, EventWithAppearances{Event: ev, Appearances: aps})
	}
	return result, nil
}

func (s *PostgresStore) appearancesForEvent(ctx context.Context, eventID uuid.UUID) ([]models.StoredAppearance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.event_id, a.person_id, p.name, a.match_method, COALESCE(a.keyframe_key, '')
		 FROM event_appearances a
		 JOIN persons p ON p.id = a.person_id
		 WHERE a.event_id = $1
		 ORDER BY a.id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("appearances for event: %w", err)
	}
	defer rows.Close()

	var aps []models.StoredAppearance
	for rows.Next() {
		var ap models.StoredAppearance
		if err := rows.Scan(&ap.ID, &ap.EventID, &ap.PersonID, &ap.PersonName,
			&ap.MatchMethod, &ap.KeyframeKey); err != nil {
			return nil, fmt.Errorf("scan appearance: %w", err)
		}
		aps = append(aps, ap)
	}
	return aps, nil
}

// GetEvent fetches one event with its appearances, or nil when the id
// is unknown.
func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*EventWithAppearances, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, COALESCE(video_filename, ''), start_time, camera_location, llm_description, created_at
		 FROM event_logs WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	defer rows.Close()
	events, err := scanEvents(rows)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	aps, err := s.appearancesForEvent(ctx, events[0].ID)
	if err != nil {
		return nil, err
	}
	return &EventWithAppearances{Event: events[0], Appearances: aps}, nil
}

// CountEventsByDate returns how many events exist for a calendar date.
func (s *PostgresStore) CountEventsByDate(ctx context.Context, date time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_logs WHERE start_time::date = $1::date`, date,
	).Scan(&count)
	return count, err
}

// CountAppearances returns the appearance count for one event.
func (s *PostgresStore) CountAppearances(ctx context.Context, eventID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM event_appearances WHERE event_id = $1`, eventID,
	).Scan(&count)
	return count, err
}

func scanEvents(rows pgx.Rows) ([]models.StoredEvent, error) {
	var events []models.StoredEvent
	for rows.Next() {
		var ev models.StoredEvent
		if err := rows.Scan(&ev.ID, &ev.VideoFilename, &ev.StartTime,
			&ev.CameraLocation, &ev.LLMDescription, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}

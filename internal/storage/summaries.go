package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/your-org/homewatch/internal/models"
)

// GetDailySummary returns the summary for a calendar date, or nil.
func (s *PostgresStore) GetDailySummary(ctx context.Context, date time.Time) (*models.DailySummary, error) {
	ds := &models.DailySummary{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, summary_date, summary_text, total_events, created_at, updated_at
		 FROM daily_summaries WHERE summary_date = $1::date`, date,
	).Scan(&ds.ID, &ds.SummaryDate, &ds.SummaryText, &ds.TotalEvents, &ds.CreatedAt, &ds.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get daily summary: %w", err)
	}
	return ds, nil
}

// UpsertDailySummary writes the summary for a date, overwriting text
// and total_events and bumping updated_at on conflict.
func (s *PostgresStore) UpsertDailySummary(ctx context.Context, date time.Time, text string, totalEvents int) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO daily_summaries (summary_date, summary_text, total_events)
		 VALUES ($1::date, $2, $3)
		 ON CONFLICT (summary_date) DO UPDATE
		 SET summary_text = EXCLUDED.summary_text,
		     total_events = EXCLUDED.total_events,
		     updated_at = now()
		 RETURNING id`,
		date, text, totalEvents,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert daily summary: %w", err)
	}
	return id, nil
}

// SummariesInRange returns summaries between two dates inclusive,
// ordered by date.
func (s *PostgresStore) SummariesInRange(ctx context.Context, from, to time.Time) ([]models.DailySummary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, summary_date, summary_text, total_events, created_at, updated_at
		 FROM daily_summaries
		 WHERE summary_date >= $1::date AND summary_date <= $2::date
		 ORDER BY summary_date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("summaries in range: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// LatestSummaries returns the most recent n summaries, newest first.
func (s *PostgresStore) LatestSummaries(ctx context.Context, n int) ([]models.DailySummary, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, summary_date, summary_text, total_events, created_at, updated_at
		 FROM daily_summaries ORDER BY summary_date DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("latest summaries: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows pgx.Rows) ([]models.DailySummary, error) {
	var summaries []models.DailySummary
	for rows.Next() {
		var ds models.DailySummary
		if err := rows.Scan(&ds.ID, &ds.SummaryDate, &ds.SummaryText,
			&ds.TotalEvents, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, ds)
	}
	return summaries, nil
}

package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/homewatch/internal/models"
)

// UpsertOwner inserts a person with role=owner or returns the existing
// row for the name. Used by enrollment; idempotent across re-runs.
func (s *PostgresStore) UpsertOwner(ctx context.Context, name string, seen time.Time) (*models.Person, error) {
	p := &models.Person{Name: name, Role: models.RoleOwner}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO persons (name, role, first_seen, last_seen)
		 VALUES ($1, 'owner', $2, $2)
		 ON CONFLICT (name) DO UPDATE SET role = 'owner'
		 RETURNING id, first_seen, last_seen, notes`,
		name, seen,
	).Scan(&p.ID, &p.FirstSeen, &p.LastSeen, &p.Notes)
	if err != nil {
		return nil, fmt.Errorf("upsert owner %s: %w", name, err)
	}
	return p, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, id int64) (*models.Person, error) {
	p := &models.Person{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, role, body_update_time, first_seen, last_seen, notes
		 FROM persons WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Role, &p.BodyUpdateTime, &p.FirstSeen, &p.LastSeen, &p.Notes)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get person: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) ListPersons(ctx context.Context) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, role, body_update_time, first_seen, last_seen, notes
		 FROM persons ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &p.BodyUpdateTime,
			&p.FirstSeen, &p.LastSeen, &p.Notes); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// FindPersonsByKeyword matches a free-text token against person names
// and notes, for the retrieval query parser fallback.
func (s *PostgresStore) FindPersonsByKeyword(ctx context.Context, keyword string) ([]models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, role, body_update_time, first_seen, last_seen, notes
		 FROM persons WHERE name ILIKE '%' || $1 || '%' OR notes ILIKE '%' || $1 || '%'
		 ORDER BY id`, keyword)
	if err != nil {
		return nil, fmt.Errorf("find persons by keyword: %w", err)
	}
	defer rows.Close()

	var persons []models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Role, &p.BodyUpdateTime,
			&p.FirstSeen, &p.LastSeen, &p.Notes); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// AddPersonFace inserts a face embedding for a person, keyed by source
// image so re-enrolling the same file is a no-op.
func (s *PostgresStore) AddPersonFace(ctx context.Context, personID int64, embedding []float32, sourceImage string) error {
	vec := pgvector.NewVector(embedding)
	_, err := s.pool.Exec(ctx,
		`INSERT INTO person_faces (person_id, embedding, source_image)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (person_id, source_image) DO NOTHING`,
		personID, vec, sourceImage)
	if err != nil {
		return fmt.Errorf("add person face: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountFaces(ctx context.Context, personID int64) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM person_faces WHERE person_id = $1`, personID,
	).Scan(&count)
	return count, err
}

type FaceMatch struct {
	PersonID int64
	Name     string
	Role     models.Role
	Score    float32
}

// SearchFaces finds the closest enrolled faces for an embedding using
// cosine similarity over the ANN index.
func (s *PostgresStore) SearchFaces(ctx context.Context, embedding []float32, threshold float64, limit int) ([]FaceMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx, `
		SELECT pf.person_id, p.name, p.role, 1 - (pf.embedding <=> $1) AS score
		FROM person_faces pf
		JOIN persons p ON p.id = pf.person_id
		WHERE 1 - (pf.embedding <=> $1) >= $2
		ORDER BY pf.embedding <=> $1
		LIMIT $3`,
		vec, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search faces: %w", err)
	}
	defer rows.Close()

	var matches []FaceMatch
	for rows.Next() {
		var m FaceMatch
		if err := rows.Scan(&m.PersonID, &m.Name, &m.Role, &m.Score); err != nil {
			return nil, fmt.Errorf("scan face match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

// BindBodyToPerson overwrites a person's body cache after a face
// confirmation. This is the sole path that attaches a body signature
// to a known identity.
func (s *PostgresStore) BindBodyToPerson(ctx context.Context, personID int64, body []float32, at time.Time) error {
	vec := pgvector.NewVector(body)
	_, err := s.pool.Exec(ctx,
		`UPDATE persons
		 SET current_body_embedding = $2, body_update_time = $3, last_seen = $3
		 WHERE id = $1`,
		personID, vec, at)
	if err != nil {
		return fmt.Errorf("bind body to person %d: %w", personID, err)
	}
	return nil
}

// TouchLastSeen advances a person's last_seen timestamp.
func (s *PostgresStore) TouchLastSeen(ctx context.Context, personID int64, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE persons SET last_seen = $2 WHERE id = $1 AND last_seen < $2`,
		personID, at)
	return err
}

type BodyCacheMatch struct {
	PersonID  int64
	Name      string
	Score     float32
	Refreshed bool // true when the hit refreshed the cache timestamp
}

/// MatchBodyCache runs the body re-identification path: nearest owner
// person whose cache entry is newer than cutoff. A similarity above the
// hard threshold refreshes the cache inside the same transaction; a
// similarity in the soft band returns the match without writing. The
// candidate row is locked so concurrent clip workers cannot interleave
// their read-decide-write sequences on one person.
func (s *PostgresStore) MatchBodyCache(ctx context.Context, body []float32, cutoff time.Time, hard, soft float64, at time.Time) (*BodyCacheMatch, error) {
	vec := pgvector.NewVector(body)

	var match *BodyCacheMatch
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		var m BodyCacheMatch
		err := tx.QueryRow(ctx, `
			SELECT id, name, 1 - (current_body_embedding <=> $1) AS score
			FROM persons
			WHERE role = 'owner'
			  AND current_body_embedding IS NOT NULL
			  AND body_update_time >= $2
			ORDER BY current_body_embedding <=> $1
			LIMIT 1
			FOR UPDATE`,
			vec, cutoff,
		).Scan(&m.PersonID, &m.Name, &m.Score)
		if err != nil {
			if err == pgx.ErrNoRows {
				return nil
			}
			return fmt.Errorf("match body cache: %w", err)
		}

		if float64(m.Score) <= soft {
			return nil
		}

		if float64(m.Score) > hard {
			_, err = tx.Exec(ctx,
				`UPDATE persons
				 SET current_body_embedding = $2, body_update_time = $3, last_seen = $3
				 WHERE id = $1`,
				m.PersonID, vec, at)
			if err != nil {
				return fmt.Errorf("refresh body cache: %w", err)
			}
			m.Refreshed = true
		}

		match = &m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

// UpsertStrangerTx creates a person row for a new stranger bucket
// inside an event transaction. Name carries the event timestamp plus
// the bucket key suffix, so re-running a failed event is idempotent.
func (s *PostgresStore) UpsertStrangerTx(ctx context.Context, tx pgx.Tx, name string, role models.Role, body []float32, seen time.Time) (int64, error) {
	vec := pgvector.NewVector(body)
	var id int64
	err := tx.QueryRow(ctx,
		`INSERT INTO persons (name, role, current_body_embedding, body_update_time, first_seen, last_seen)
		 VALUES ($1, $2, $3, $4, $4, $4)
		 ON CONFLICT (name) DO UPDATE SET last_seen = EXCLUDED.last_seen
		 RETURNING id`,
		name, role, vec, seen,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert stranger %s: %w", name, err)
	}
	return id, nil
}

// UpdateRoleTx changes a person's role and appends a note, used when
// behaviour inference overrides an identity-derived role.
func (s *PostgresStore) UpdateRoleTx(ctx context.Context, tx pgx.Tx, personID int64, role models.Role, note string) error {
	_, err := tx.Exec(ctx,
		`UPDATE persons
		 SET role = $2,
		     notes = CASE WHEN notes = '' THEN $3 ELSE notes || '; ' || $3 END
		 WHERE id = $1`,
		personID, role, note)
	if err != nil {
		return fmt.Errorf("update role for person %d: %w", personID, err)
	}
	return nil
}

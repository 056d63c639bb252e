package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// RosterStore reads cohort rosters from the roster_members table.
// The table is populated by the enrolment system and only read here.
type RosterStore struct {
	pool *pgxpool.Pool
}

// NewRosterStore creates a new PostgreSQL-backed roster reader.
func NewRosterStore(pool *pgxpool.Pool) *RosterStore {
	return &RosterStore{
		pool: pool,
	}
}

// Roster returns the student ids for the key ordered by position.
// An unknown key yields an empty roster.
func (s *RosterStore) Roster(ctx context.Context, key string) ([]string, error) {
	query := `
		SELECT student_id
		FROM roster_members
		WHERE roster_key = $1
		ORDER BY position, student_id
	`

	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query roster: %w", mapPostgresError(err))
	}
	defer rows.Close()

	students := []string{}
	for rows.Next() {
		var studentID string
		if err := rows.Scan(&studentID); err != nil {
			return nil, fmt.Errorf("failed to scan roster member: %w", err)
		}
		students = append(students, studentID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roster: %w", mapPostgresError(err))
	}

	log.Debug().Str("roster_key", key).Int("count", len(students)).Msg("Loaded roster")

	return students, nil
}

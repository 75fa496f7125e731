package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rmarchant/polyscout/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL: an
// append-only log of every emitted opportunity.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// Insert appends one opportunity. Legs are stored as JSONB.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	legs, err := json.Marshal(opp.Legs)
	if err != nil {
		return fmt.Errorf("postgres: marshal legs for opportunity %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO opportunities (
			id, set_id, event_id, event_title, set_label,
			legs, basket_sum, threshold, margin, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.SetID, opp.EventID, opp.EventTitle, opp.SetLabel,
		legs, opp.Sum, opp.Threshold, opp.Margin, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListSince returns opportunities detected at or after the given time, newest
// first, capped at limit.
func (s *OpportunityStore) ListSince(ctx context.Context, since time.Time, limit int) ([]domain.Opportunity, error) {
	if limit <= 0 {
		limit = 100
	}

	const query = `
		SELECT id, set_id, event_id, event_title, set_label,
		       legs, basket_sum, threshold, margin, detected_at
		FROM opportunities
		WHERE detected_at >= $1
		ORDER BY detected_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var out []domain.Opportunity
	for rows.Next() {
		var opp domain.Opportunity
		var legs []byte
		if err := rows.Scan(
			&opp.ID, &opp.SetID, &opp.EventID, &opp.EventTitle, &opp.SetLabel,
			&legs, &opp.Sum, &opp.Threshold, &opp.Margin, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		if err := json.Unmarshal(legs, &opp.Legs); err != nil {
			return nil, fmt.Errorf("postgres: decode legs for %s: %w", opp.ID, err)
		}
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return out, nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rmarchant/polyscout/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. Rows are written
// once per discovery cycle for audit; the monitoring path never reads them.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// UpsertEvent writes or refreshes one catalog event, replacing the stored tag
// set with the merged one.
func (s *EventStore) UpsertEvent(ctx context.Context, e domain.Event) error {
	const query = `
		INSERT INTO events (id, title, slug, end_at, tags, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title      = EXCLUDED.title,
			slug       = EXCLUDED.slug,
			end_at     = EXCLUDED.end_at,
			tags       = EXCLUDED.tags,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query, e.ID, e.Title, e.Slug, e.EndAt, e.TagList())
	if err != nil {
		return fmt.Errorf("postgres: upsert event %s: %w", e.ID, err)
	}
	return nil
}

// UpsertOutcomeSet writes or refreshes one outcome set and replaces its legs.
// The legs are rewritten wholesale inside a transaction so a partial leg list
// is never observable.
func (s *EventStore) UpsertOutcomeSet(ctx context.Context, set domain.OutcomeSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin upsert outcome set %s: %w", set.ID, err)
	}
	defer tx.Rollback(ctx)

	const upsertSet = `
		INSERT INTO outcome_sets (id, event_id, label, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			event_id   = EXCLUDED.event_id,
			label      = EXCLUDED.label,
			updated_at = NOW()`

	if _, err := tx.Exec(ctx, upsertSet, set.ID, set.EventID, set.Label); err != nil {
		return fmt.Errorf("postgres: upsert outcome set %s: %w", set.ID, err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outcome_set_legs WHERE set_id = $1`, set.ID); err != nil {
		return fmt.Errorf("postgres: clear legs for set %s: %w", set.ID, err)
	}

	const insertLeg = `
		INSERT INTO outcome_set_legs (set_id, position, token_id, label, market_id)
		VALUES ($1, $2, $3, $4, $5)`

	for i, o := range set.Outcomes {
		if _, err := tx.Exec(ctx, insertLeg, set.ID, i, o.TokenID, o.Label, o.MarketID); err != nil {
			return fmt.Errorf("postgres: insert leg %d for set %s: %w", i, set.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit outcome set %s: %w", set.ID, err)
	}
	return nil
}

package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository queries audit_logs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const timelineQuery = `SELECT occurred_at, actor_id, action, entity, entity_id, meta
FROM audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_id = $3)
  AND ($4::text IS NULL OR entity = $4)
  AND ($5::text IS NULL OR entity_id = $5)
  AND ($6::text IS NULL OR action = $6)
ORDER BY occurred_at DESC, id DESC`

func (r *PGRepository) Window(ctx context.Context, f Filters, offset, limit int) ([]Entry, error) {
	args := append(filterArgs(f), limit, offset)
	rows, err := r.pool.Query(ctx, timelineQuery+` LIMIT $7 OFFSET $8`, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

func (r *PGRepository) All(ctx context.Context, f Filters) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, timelineQuery, filterArgs(f)...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanEntry)
}

func filterArgs(f Filters) []any {
	return []any{
		toPgTime(f.From),
		toPgTime(f.To),
		optionalText(f.Actor),
		optionalText(f.Entity),
		optionalText(f.EntityID),
		optionalText(f.Action),
	}
}

func scanEntry(row pgx.CollectableRow) (Entry, error) {
	var (
		e  Entry
		at pgtype.Timestamptz
	)
	if err := row.Scan(&at, &e.ActorID, &e.Action, &e.Entity, &e.EntityID, &e.Meta); err != nil {
		return Entry{}, err
	}
	if at.Valid {
		e.At = at.Time.UTC()
	}
	return e, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	if value == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: value, Valid: true}
}

package audit

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads audit_logs for the timeline.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TimelineWindow returns a page of entries, newest first. Limit should
// be pageSize+1 so the caller can probe for a next page.
func (r *Repository) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	if r == nil {
		return nil, errors.New("audit: repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT id, target_id, module, action, old_state, new_state, changed_by, occurred_at
FROM audit_logs
WHERE occurred_at BETWEEN COALESCE(NULLIF($1, '0001-01-01 00:00:00+00'::timestamptz), '-infinity') AND COALESCE(NULLIF($2, '0001-01-01 00:00:00+00'::timestamptz), 'infinity')
  AND ($3 = '' OR module = $3)
  AND ($4 = '' OR action = $4)
  AND ($5 = '' OR target_id = $5)
  AND ($6 = 0 OR changed_by = $6)
ORDER BY occurred_at DESC, id DESC
LIMIT $7 OFFSET $8`,
		filters.From, filters.To, filters.Module, filters.Action, filters.TargetID, filters.ChangedBy, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := []TimelineRow{}
	for rows.Next() {
		var row TimelineRow
		var occurredAt time.Time
		if err := rows.Scan(&row.ID, &row.TargetID, &row.Module, &row.Action, &row.OldState, &row.NewState, &row.ChangedBy, &occurredAt); err != nil {
			return nil, err
		}
		row.At = occurredAt
		result = append(result, row)
	}
	return result, rows.Err()
}

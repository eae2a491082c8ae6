package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/snipflow/pkg/pg"
)

// PostgresStore is the usage ledger in the usage_events table. Rows cannot be
// updated or deleted once written.
type PostgresStore struct {
	db pg.Querier
}

func NewPostgresStore(db pg.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// AppendBatch inserts the batch with COPY, which is atomic for the batch.
func (s *PostgresStore) AppendBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(events))
	for _, e := range events {
		meta := e.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		rows = append(rows, []any{
			e.ID, e.PrincipalID, string(e.Feature), string(e.Type), e.Quantity, meta, e.CreatedAt,
		})
	}

	_, err := s.db.CopyFrom(ctx,
		pgx.Identifier{"usage_events"},
		[]string{"id", "principal_id", "feature", "usage_type", "quantity", "metadata", "created_at"},
		pgx.CopyFromRows(rows),
	)
	return err
}

func (s *PostgresStore) CountSince(ctx context.Context, principalID uuid.UUID, f Feature, since time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM usage_events
		WHERE principal_id = $1 AND feature = $2 AND created_at > $3`,
		principalID, string(f), since.UTC(),
	).Scan(&n)
	return n, err
}

func (s *PostgresStore) Totals(ctx context.Context, principalID uuid.UUID, since time.Time) (map[Feature]int64, error) {
	rows, err := s.db.Query(ctx, `
		SELECT feature, SUM(quantity)::bigint
		FROM usage_events
		WHERE principal_id = $1 AND created_at > $2
		GROUP BY feature`,
		principalID, since.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Feature]int64)
	for rows.Next() {
		var (
			f string
			n int64
		)
		if err := rows.Scan(&f, &n); err != nil {
			return nil, err
		}
		out[Feature(f)] = n
	}
	return out, rows.Err()
}

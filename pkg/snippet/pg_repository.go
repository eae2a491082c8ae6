package snippet

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/snipflow/pkg/pg"
	"github.com/dmitrymomot/snipflow/pkg/principal"
)

// PostgresRepository stores snippets in the snippets table. The quota slot
// and the row change share one transaction. The insert runs under a
// savepoint so a failed insert leaves the transaction usable for the
// compensating release before everything rolls back.
type PostgresRepository struct {
	db         pg.TxBeginner
	principals *principal.PostgresStore
}

func NewPostgresRepository(db pg.TxBeginner) *PostgresRepository {
	return &PostgresRepository{db: db, principals: principal.NewPostgresStore(db)}
}

func (r *PostgresRepository) Create(ctx context.Context, s *Snippet, claim ClaimFunc) error {
	return pg.InTx(ctx, r.db, func(tx pgx.Tx) error {
		return claim(ctx, r.principals.WithTx(tx), func(ctx context.Context) error {
			return pg.InTx(ctx, tx, func(sp pgx.Tx) error {
				_, err := sp.Exec(ctx, `
					INSERT INTO snippets (id, principal_id, title, language, content, created_at)
					VALUES ($1, $2, $3, $4, $5, $6)`,
					s.ID, s.PrincipalID, s.Title, s.Language, s.Content, s.CreatedAt,
				)
				return err
			})
		})
	})
}

func (r *PostgresRepository) Delete(ctx context.Context, principalID, id uuid.UUID, release ReleaseFunc) error {
	return pg.InTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM snippets WHERE id = $1 AND principal_id = $2`, id, principalID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return release(ctx, r.principals.WithTx(tx))
	})
}

const snippetColumns = `id, principal_id, title, language, content, created_at`

func (r *PostgresRepository) Get(ctx context.Context, principalID, id uuid.UUID) (*Snippet, error) {
	var s Snippet
	err := r.db.QueryRow(ctx, `
		SELECT `+snippetColumns+`
		FROM snippets
		WHERE id = $1 AND principal_id = $2`, id, principalID,
	).Scan(&s.ID, &s.PrincipalID, &s.Title, &s.Language, &s.Content, &s.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) List(ctx context.Context, principalID uuid.UUID, limit int) ([]Snippet, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+snippetColumns+`
		FROM snippets
		WHERE principal_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, principalID, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Snippet])
}

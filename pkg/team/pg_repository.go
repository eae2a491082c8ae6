package team

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/snipflow/pkg/pg"
	"github.com/dmitrymomot/snipflow/pkg/principal"
)

// PostgresRepository stores members in team_members. The insert runs under a
// savepoint; a unique violation hands the seat back and the outer transaction
// rolls back with it.
type PostgresRepository struct {
	db         pg.TxBeginner
	principals *principal.PostgresStore
}

func NewPostgresRepository(db pg.TxBeginner) *PostgresRepository {
	return &PostgresRepository{db: db, principals: principal.NewPostgresStore(db)}
}

func (r *PostgresRepository) Add(ctx context.Context, m *Member, claim ClaimFunc) error {
	return pg.InTx(ctx, r.db, func(tx pgx.Tx) error {
		return claim(ctx, r.principals.WithTx(tx), func(ctx context.Context) error {
			err := pg.InTx(ctx, tx, func(sp pgx.Tx) error {
				_, err := sp.Exec(ctx, `
					INSERT INTO team_members (id, principal_id, email, role, created_at)
					VALUES ($1, $2, $3, $4, $5)`,
					m.ID, m.PrincipalID, m.Email, string(m.Role), m.CreatedAt,
				)
				return err
			})
			if pg.IsDuplicateKeyError(err) {
				return ErrAlreadyInvited
			}
			return err
		})
	})
}

func (r *PostgresRepository) Remove(ctx context.Context, principalID, id uuid.UUID, release ReleaseFunc) error {
	return pg.InTx(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM team_members WHERE id = $1 AND principal_id = $2`, id, principalID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return release(ctx, r.principals.WithTx(tx))
	})
}

func (r *PostgresRepository) List(ctx context.Context, principalID uuid.UUID) ([]Member, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, principal_id, email, role, created_at
		FROM team_members
		WHERE principal_id = $1
		ORDER BY created_at`, principalID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Member, error) {
		var (
			m    Member
			role string
		)
		err := row.Scan(&m.ID, &m.PrincipalID, &m.Email, &role, &m.CreatedAt)
		m.Role = Role(role)
		return m, err
	})
}

package apikey

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/snipflow/pkg/pg"
)

// PostgresStore persists keys in the api_keys table.
type PostgresStore struct {
	db pg.Querier
}

func NewPostgresStore(db pg.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const keyColumns = `id, principal_id, name, prefix, key_hash, rate_limit, active, last_used_at, created_at, revoked_at`

func (s *PostgresStore) Create(ctx context.Context, k *Key) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO api_keys (`+keyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		k.ID, k.PrincipalID, k.Name, k.Prefix, k.Hash, k.RateLimit,
		k.Active, k.LastUsedAt, k.CreatedAt, k.RevokedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrDuplicateHash
	}
	return err
}

func (s *PostgresStore) FindByHash(ctx context.Context, hash string) (*Key, error) {
	row := s.db.QueryRow(ctx, `SELECT `+keyColumns+` FROM api_keys WHERE key_hash = $1`, hash)
	k, err := scanKey(row)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return k, nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]Key, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+keyColumns+`
		FROM api_keys
		WHERE principal_id = $1
		ORDER BY created_at DESC`, principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Key
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Revoke(ctx context.Context, principalID, keyID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE api_keys
		SET active = FALSE, revoked_at = COALESCE(revoked_at, $3)
		WHERE id = $1 AND principal_id = $2`,
		keyID, principalID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func (s *PostgresStore) TouchLastUsed(ctx context.Context, keyID uuid.UUID, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, keyID, at.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

func scanKey(row pgx.Row) (*Key, error) {
	var k Key
	err := row.Scan(
		&k.ID,
		&k.PrincipalID,
		&k.Name,
		&k.Prefix,
		&k.Hash,
		&k.RateLimit,
		&k.Active,
		&k.LastUsedAt,
		&k.CreatedAt,
		&k.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

package principal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/snipflow/pkg/pg"
	"github.com/dmitrymomot/snipflow/pkg/plan"
)

// PostgresStore persists principals in the principals table.
type PostgresStore struct {
	db pg.Querier
}

// NewPostgresStore returns a store running statements on db.
func NewPostgresStore(db pg.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

// WithTx returns a store bound to tx, so a reservation commits or rolls back
// together with the caller's other statements.
func (s *PostgresStore) WithTx(tx pgx.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

const selectPrincipal = `
	SELECT id, plan, snippet_count, team_member_count,
	       subscription_status, subscription_expires_at, created_at, updated_at
	FROM principals
	WHERE id = $1`

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Principal, error) {
	var (
		p      Principal
		tier   string
		status string
	)
	err := s.db.QueryRow(ctx, selectPrincipal, id).Scan(
		&p.ID,
		&tier,
		&p.SnippetCount,
		&p.TeamMemberCount,
		&status,
		&p.Subscription.ExpiresAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Plan = plan.Tier(tier)
	p.Subscription.Status = Status(status)
	return &p, nil
}

func (s *PostgresStore) Create(ctx context.Context, p *Principal) error {
	if p.SnippetCount < 0 || p.TeamMemberCount < 0 {
		return ErrNegativeCounter
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO principals (id, plan, snippet_count, team_member_count,
		                        subscription_status, subscription_expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID,
		string(p.Plan),
		p.SnippetCount,
		p.TeamMemberCount,
		string(p.Subscription.Status),
		p.Subscription.ExpiresAt,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if pg.IsDuplicateKeyError(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PostgresStore) ChangePlan(ctx context.Context, id uuid.UUID, tier plan.Tier, sub Subscription) error {
	if err := validatePlanChange(tier, sub); err != nil {
		return err
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE principals
		SET plan = $2, subscription_status = $3, subscription_expires_at = $4, updated_at = now()
		WHERE id = $1`,
		id, string(tier), string(sub.Status), sub.ExpiresAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ExpireLapsed(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE principals
		SET subscription_status = 'expired', updated_at = now()
		WHERE subscription_status IN ('active', 'past_due')
		  AND subscription_expires_at IS NOT NULL
		  AND subscription_expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// reserveQueries hold one conditional increment per resource. The column name
// cannot be a bind parameter, so each statement is spelled out.
// The locked CTE takes the row lock and reads the latest committed count, and
// the increment is decided on that value. A refusal therefore reports the
// count it was refused at, with no window for a concurrent release. No row at
// all means the principal does not exist.
var reserveQueries = map[plan.Resource]string{
	plan.ResourceSnippets: `
		WITH locked AS (
			SELECT snippet_count FROM principals WHERE id = $1 FOR UPDATE
		), reserved AS (
			UPDATE principals p
			SET snippet_count = l.snippet_count + 1, updated_at = now()
			FROM locked l
			WHERE p.id = $1 AND ($2::bigint < 0 OR l.snippet_count < $2::bigint)
			RETURNING p.snippet_count
		)
		SELECT COALESCE((SELECT snippet_count FROM reserved), l.snippet_count),
		       EXISTS (SELECT 1 FROM reserved)
		FROM locked l`,
	plan.ResourceTeamMembers: `
		WITH locked AS (
			SELECT team_member_count FROM principals WHERE id = $1 FOR UPDATE
		), reserved AS (
			UPDATE principals p
			SET team_member_count = l.team_member_count + 1, updated_at = now()
			FROM locked l
			WHERE p.id = $1 AND ($2::bigint < 0 OR l.team_member_count < $2::bigint)
			RETURNING p.team_member_count
		)
		SELECT COALESCE((SELECT team_member_count FROM reserved), l.team_member_count),
		       EXISTS (SELECT 1 FROM reserved)
		FROM locked l`,
}

var releaseQueries = map[plan.Resource]string{
	plan.ResourceSnippets: `
		UPDATE principals
		SET snippet_count = GREATEST(snippet_count - 1, 0), updated_at = now()
		WHERE id = $1`,
	plan.ResourceTeamMembers: `
		UPDATE principals
		SET team_member_count = GREATEST(team_member_count - 1, 0), updated_at = now()
		WHERE id = $1`,
}

func (s *PostgresStore) Reserve(ctx context.Context, id uuid.UUID, res plan.Resource, max plan.Limit) (int64, bool, error) {
	query, ok := reserveQueries[res]
	if !ok {
		return 0, false, ErrUnknownResource
	}

	var (
		current int64
		granted bool
	)
	if err := s.db.QueryRow(ctx, query, id, int64(max)).Scan(&current, &granted); err != nil {
		if pg.IsNotFoundError(err) {
			return 0, false, ErrNotFound
		}
		return 0, false, err
	}
	return current, granted, nil
}

func (s *PostgresStore) Release(ctx context.Context, id uuid.UUID, res plan.Resource) error {
	query, ok := releaseQueries[res]
	if !ok {
		return ErrUnknownResource
	}

	tag, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

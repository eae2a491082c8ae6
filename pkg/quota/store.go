package quota

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/snipflow/pkg/plan"
	"github.com/dmitrymomot/snipflow/pkg/principal"
)

// Store is the atomic counter primitive quota enforcement is built on.
// principal.MemoryStore and principal.PostgresStore implement it; the
// PostgreSQL store can be bound to a transaction with WithTx.
type Store interface {
	// Reserve increments the counter only if max is unlimited or the current
	// value is below max, in one atomic step.
	Reserve(ctx context.Context, id uuid.UUID, res plan.Resource, max plan.Limit) (current int64, granted bool, err error)

	// Release decrements the counter, floored at zero.
	Release(ctx context.Context, id uuid.UUID, res plan.Resource) error
}

// Principals resolves the principal a reservation is made for.
type Principals interface {
	Get(ctx context.Context, id uuid.UUID) (*principal.Principal, error)
}

var (
	_ Store = (*principal.MemoryStore)(nil)
	_ Store = (*principal.PostgresStore)(nil)
)

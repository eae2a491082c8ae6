package gate

import (
	"context"

	"github.com/dmitrymomot/snipflow/pkg/apikey"
)

type identityKey struct{}

// WithIdentity stores the verified caller in ctx.
func WithIdentity(ctx context.Context, id *apikey.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller verified by Authenticate.
func IdentityFrom(ctx context.Context) (*apikey.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*apikey.Identity)
	return id, ok && id != nil
}

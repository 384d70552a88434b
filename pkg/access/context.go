package access

import (
	"context"

	"github.com/adampresley/fotofacil/pkg/models"
)

type contextKey string

const identityContextKey contextKey = "identity"

func ContextWithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext returns the identity placed by the access middleware, or nil.
func IdentityFromContext(ctx context.Context) *models.Identity {
	if result, ok := ctx.Value(identityContextKey).(*models.Identity); ok {
		return result
	}

	return nil
}

package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/jwt"
)

// RequireSessionStrict is RequireSession plus an existence check against
// lookup. Lookup errors reject the request.
func RequireSessionStrict(manager *jwt.Manager, lookup authform.EmailLookup) func(http.Handler) http.Handler {
	if lookup == nil {
		return guard(manager, func(context.Context, *jwt.SessionClaims) bool { return false })
	}
	return guard(manager, func(ctx context.Context, claims *jwt.SessionClaims) bool {
		exists, err := lookup.CheckEmailExists(ctx, claims.Email)
		return err == nil && exists
	})
}

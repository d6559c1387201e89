package service

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/canteen/internal/auth"
	"github.com/mmynk/canteen/internal/middleware"
)

// clock returns the current time. Services hold one so tests can move time.
type clock func() time.Time

// principalFor resolves the authenticated caller. Requests that reach a
// handler without a user ID were not authenticated.
func principalFor(ctx context.Context, resolver *auth.Resolver) (*auth.Principal, error) {
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	return resolver.Resolve(ctx, userID)
}

package testutil

import (
	"context"
	"net/http"
	"time"

	id "poolshare/pkg/domain"
	"poolshare/pkg/requestcontext"
)

// WithPrincipal adds the authenticated caller to the request context, as the
// auth middleware would. Invalid ids are ignored.
func WithPrincipal(req *http.Request, principalID string) *http.Request {
	parsed, err := id.ParsePrincipalID(principalID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithPrincipalID(req.Context(), parsed))
}

// CallerContext returns a context carrying principal and a fixed clock.
func CallerContext(principal id.PrincipalID, now time.Time) context.Context {
	ctx := requestcontext.WithPrincipalID(context.Background(), principal)
	return requestcontext.WithTime(ctx, now)
}

// At returns ctx with the clock moved to now. Caller identity is kept.
func At(ctx context.Context, now time.Time) context.Context {
	return requestcontext.WithTime(ctx, now)
}

// Package requesttime pins "now" for the whole request so every deadline
// comparison made while serving it sees the same instant.
package requesttime

import (
	"net/http"
	"time"

	"poolshare/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/kalambet/trad/internal/arbiter"
)

type ctxKey struct{}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p *arbiter.Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// FromContext returns the request principal, or nil for anonymous requests.
func FromContext(ctx context.Context) *arbiter.Principal {
	p, _ := ctx.Value(ctxKey{}).(*arbiter.Principal)
	return p
}

// Parser turns a bearer token into a principal.
type Parser interface {
	Parse(token string) (*arbiter.Principal, error)
}

// Middleware attaches the bearer token's principal to the request context.
// Requests without an Authorization header proceed anonymously; a header
// that does not hold a valid token is answered by onFail.
func Middleware(p Parser, onFail http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			const prefix = "Bearer "
			if !strings.HasPrefix(header, prefix) {
				onFail(w, r)
				return
			}
			principal, err := p.Parse(strings.TrimSpace(header[len(prefix):]))
			if err != nil {
				onFail(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/ariefcatur/go-clothing-orders/internal/auth"
)

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (auth.Requester, error)
}

type requesterKey struct{}

// Authenticate resolves the bearer token into a Requester. Requests without
// a token continue anonymously; the core rejects them where it matters. A
// token that does not resolve is answered with 401 right away.
func Authenticate(sessions SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" || sessions == nil {
				next.ServeHTTP(w, r)
				return
			}
			who, err := sessions.Resolve(r.Context(), token)
			if err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requesterKey{}, who)))
		})
	}
}

// requester returns the caller, or the zero (anonymous) Requester.
func requester(r *http.Request) auth.Requester {
	who, _ := r.Context().Value(requesterKey{}).(auth.Requester)
	return who
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

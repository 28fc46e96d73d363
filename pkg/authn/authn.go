package authn

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

var ErrUnauthorized = errors.New("unauthorized")

// UserLookup resolves a stored token hash to its user. Implementations
// return domain.ErrNotFound for an unknown hash.
type UserLookup interface {
	UserByTokenHash(ctx context.Context, tokenHash string) (domain.User, error)
}

func AuthenticateBearer(ctx context.Context, users UserLookup, authorization string) (domain.User, error) {
	token, ok := parseBearerToken(authorization)
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	u, err := users.UserByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.User{}, ErrUnauthorized
		}
		return domain.User{}, err
	}
	return u, nil
}

type ctxKey struct{}

func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(domain.User)
	return u, ok
}

// Middleware authenticates the Authorization header and stores the user in
// the request context. onError writes the rejection.
func Middleware(users UserLookup, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := AuthenticateBearer(r.Context(), users, r.Header.Get("Authorization"))
			if err != nil {
				onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

func parseBearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", false
	}
	return token, true
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

package authn

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
)

type fakeUsers struct {
	byHash map[string]domain.User
	err    error
	calls  int
}

func (f *fakeUsers) UserByTokenHash(ctx context.Context, tokenHash string) (domain.User, error) {
	f.calls++
	if f.err != nil {
		return domain.User{}, f.err
	}
	u, ok := f.byHash[tokenHash]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func TestAuthenticateBearer_KnownToken(t *testing.T) {
	users := &fakeUsers{byHash: map[string]domain.User{HashToken("tok_1"): {ID: "usr_1"}}}
	u, err := AuthenticateBearer(context.Background(), users, "Bearer tok_1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if u.ID != "usr_1" {
		t.Fatalf("expected usr_1, got %s", u.ID)
	}
}

func TestAuthenticateBearer_MalformedHeaderSkipsLookup(t *testing.T) {
	users := &fakeUsers{}
	for _, h := range []string{"", "Basic abc", "Bearer ", "bearer tok_1"} {
		if _, err := AuthenticateBearer(context.Background(), users, h); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("header %q: expected ErrUnauthorized, got %v", h, err)
		}
	}
	if users.calls != 0 {
		t.Fatalf("expected no lookups, got %d", users.calls)
	}
}

func TestAuthenticateBearer_UnknownToken(t *testing.T) {
	users := &fakeUsers{byHash: map[string]domain.User{}}
	if _, err := AuthenticateBearer(context.Background(), users, "Bearer nope"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateBearer_StoreErrorPassesThrough(t *testing.T) {
	users := &fakeUsers{err: errors.New("db down")}
	_, err := AuthenticateBearer(context.Background(), users, "Bearer tok_1")
	if err == nil || errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestMiddlewareStoresUser(t *testing.T) {
	users := &fakeUsers{byHash: map[string]domain.User{HashToken("tok_1"): {ID: "usr_1"}}}
	var got domain.User
	h := Middleware(users, func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(401)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = UserFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok_1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if got.ID != "usr_1" {
		t.Fatalf("expected user in context, got %+v", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != 401 {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

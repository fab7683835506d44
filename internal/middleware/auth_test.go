package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mmeshcher/artist-booking/internal/model"
)

func TestAuthMiddleware_WithValidCookie(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	want := model.Actor{ID: "org-42", Role: model.RoleOrganizer}

	nextCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nextCalled = true
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			t.Fatalf("actor not in context")
		}
		if actor != want {
			t.Fatalf("actor from context = %+v, want %+v", actor, want)
		}
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.AddCookie(&http.Cookie{Name: authCookieName, Value: m.Token(want)})

	handler := m.Middleware(next)
	handler.ServeHTTP(httptest.NewRecorder(), r)

	if !nextCalled {
		t.Fatalf("next handler was not called")
	}
}

func TestAuthMiddleware_WithBearerToken(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	want := model.Actor{ID: "op-1", Role: model.RoleOperator}

	var got model.Actor
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ActorFromContext(r.Context())
	})

	r := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.Header.Set("Authorization", "Bearer "+m.Token(want))

	m.Middleware(next).ServeHTTP(httptest.NewRecorder(), r)

	if got != want {
		t.Fatalf("actor = %+v, want %+v", got, want)
	}
}

func TestAuthMiddleware_RejectsBadTokens(t *testing.T) {
	m := NewAuthMiddleware("test-secret")
	other := NewAuthMiddleware("other-secret")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"no signature", "org-1:organizer"},
		{"foreign secret", other.Token(model.Actor{ID: "org-1", Role: model.RoleOrganizer})},
		{"role swapped", "org-1:operator." + m.sign("org-1:organizer")},
		{"unknown role", m.Token(model.Actor{ID: "x", Role: model.Role("admin")})},
		{"no role", "org-1." + m.sign("org-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("next handler should not be called")
			})

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}

			m.Middleware(next).ServeHTTP(w, r)

			if w.Result().StatusCode != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
			}
		})
	}
}

// Package middleware содержит HTTP middleware сервиса бронирования артистов.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/mmeshcher/artist-booking/internal/model"
)

type contextKey string

const actorKey contextKey = "actor"

const (
	authCookieName = "actor_token"
	bearerPrefix   = "Bearer "
)

// AuthMiddleware проверяет подписанный токен участника: "<id>:<role>.<hmac>".
// Токен принимается из заголовка Authorization или из cookie.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет токен и добавляет участника в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		actor, ok := a.ParseToken(token)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Token подписывает участника.
func (a *AuthMiddleware) Token(actor model.Actor) string {
	payload := actor.ID + ":" + string(actor.Role)
	return payload + "." + a.sign(payload)
}

// ParseToken проверяет подпись и возвращает участника.
func (a *AuthMiddleware) ParseToken(token string) (model.Actor, bool) {
	dot := strings.LastIndex(token, ".")
	if dot <= 0 {
		return model.Actor{}, false
	}
	payload, signature := token[:dot], token[dot+1:]

	if !hmac.Equal([]byte(signature), []byte(a.sign(payload))) {
		return model.Actor{}, false
	}

	colon := strings.LastIndex(payload, ":")
	if colon <= 0 {
		return model.Actor{}, false
	}
	actor := model.Actor{ID: payload[:colon], Role: model.Role(payload[colon+1:])}
	if !actor.Role.Valid() {
		return model.Actor{}, false
	}

	return actor, true
}

func (a *AuthMiddleware) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix))
	}
	if cookie, err := r.Cookie(authCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// WithActor кладёт участника в контекст.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext извлекает участника из контекста запроса.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}

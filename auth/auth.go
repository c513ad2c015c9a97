// Package auth protects dashboard-facing routes with bearer-token
// verification. Tokens are HMAC-signed JWTs issued by the dashboard's
// auth service; this package only verifies them.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
)

type contextKey string

// userIDKey carries the authenticated user id on the request context.
const userIDKey contextKey = "userID"

// tokenCacheEntry stores the result of a successful verification.
type tokenCacheEntry struct {
	UserID string // "sub" claim
}

// Verifier validates bearer tokens, memoizing successful verifications
// until the token's own expiry.
type Verifier struct {
	secret []byte
	cache  *cache.Cache
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		cache:  cache.New(24*time.Hour, time.Hour),
	}
}

// Middleware rejects requests without a valid bearer token and places the
// user id on the context for downstream handlers.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, `{"error": "Missing or invalid Authorization header"}`, http.StatusUnauthorized)
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == "" {
			http.Error(w, `{"error": "Missing or invalid Authorization header"}`, http.StatusUnauthorized)
			return
		}

		if cached, found := v.cache.Get(tokenStr); found {
			if entry, ok := cached.(tokenCacheEntry); ok {
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, entry.UserID)))
				return
			}
		}

		userID, exp, err := v.verify(tokenStr)
		if err != nil {
			log.Debug().Err(err).Msg("token verification failed")
			http.Error(w, `{"error": "Unauthorized"}`, http.StatusUnauthorized)
			return
		}

		if ttl := time.Until(exp); ttl > 0 {
			v.cache.Set(tokenStr, tokenCacheEntry{UserID: userID}, ttl)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	})
}

// verify parses and validates the token, returning the subject and expiry.
func (v *Verifier) verify(tokenStr string) (userID string, exp time.Time, err error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", time.Time{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", time.Time{}, fmt.Errorf("invalid token claims")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", time.Time{}, fmt.Errorf("token has no subject")
	}

	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return "", time.Time{}, fmt.Errorf("token has no expiry")
	}

	return sub, expiry.Time, nil
}

// UserID returns the authenticated user id from a request context.
func UserID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

/*
middleware.go - Request logging and actor resolution

PURPOSE:
  Two middlewares sit in front of every /api route:

  RequestLogger  One structured zap line per request with status, method,
                 path, latency and the chi request id. 5xx logs at error,
                 4xx at warn, the rest at info.

  Authenticate   Resolves the acting user and stores it in the request
                 context. Bearer tokens are HS256 JWTs whose "sub" claim is
                 the user id. When a dev header is configured, its value is
                 trusted as the user id (local runs and tests only).
                 Requests with neither get 401.

  Authorization (who may do what) is not decided here: the ledgers and
  engines check permissions against the Authorizer themselves.

SEE ALSO:
  - server.go: Middleware order
  - generic/directory.go: Authorizer, permissions
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// REQUEST LOGGING
// =============================================================================

func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
			}

			switch {
			case status >= 500:
				logger.Error("request failed", fields...)
			case status >= 400:
				logger.Warn("client error", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}

// =============================================================================
// ACTOR RESOLUTION
// =============================================================================

type contextKey string

const actorContextKey contextKey = "actor"

// WithActor returns a context carrying actor.
func WithActor(ctx context.Context, actor generic.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(ctx context.Context) (generic.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(generic.Actor)
	return actor, ok && !actor.IsZero()
}

// Claims is the bearer token payload. Subject carries the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type AuthOptions struct {
	// JWTSecret verifies bearer tokens. Empty disables bearer auth.
	JWTSecret string
	// DevHeader, when set, is trusted as the actor id.
	DevHeader string
}

var errNoCredentials = errors.New("no credentials")

// IssueToken signs a token for userID. Used by tooling and tests; the
// ledger does not manage credentials itself.
func IssueToken(secret string, userID generic.UserID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(secret, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", jwt.ErrTokenInvalidClaims)
	}
	return claims, nil
}

func (o AuthOptions) resolve(r *http.Request) (generic.Actor, error) {
	if header := r.Header.Get("Authorization"); header != "" && o.JWTSecret != "" {
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			return generic.Actor{}, errors.New("authorization header must be a bearer token")
		}
		claims, err := parseToken(o.JWTSecret, strings.TrimSpace(raw))
		if err != nil {
			return generic.Actor{}, err
		}
		return generic.Actor{ID: generic.UserID(claims.Subject)}, nil
	}
	if o.DevHeader != "" {
		if id := strings.TrimSpace(r.Header.Get(o.DevHeader)); id != "" {
			return generic.Actor{ID: generic.UserID(id)}, nil
		}
	}
	return generic.Actor{}, errNoCredentials
}

func Authenticate(opts AuthOptions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := opts.resolve(r)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error:   "Authentication required",
					Code:    "unauthenticated",
					Details: err.Error(),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

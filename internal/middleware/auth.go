// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/carterperez-dev/homeser/internal/core"
	"github.com/carterperez-dev/homeser/internal/policy"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

const (
	actorKey     contextKey = "actor"
	claimsKey    contextKey = "jwt_claims"
	authErrorKey contextKey = "auth_error"
)

type AccessTokenClaims struct {
	UserID       int64
	Role         string
	TokenVersion int
	JTI          string
	ExpiresAt    time.Time
}

type TokenVerifier interface {
	VerifyAccessToken(
		ctx context.Context,
		token string,
	) (*AccessTokenClaims, error)
}

// SessionResolver maps a request's session cookie to a logged-in user.
type SessionResolver interface {
	ResolveSession(ctx context.Context, r *http.Request) (policy.Actor, bool)
}

// Identify resolves who is calling: session user first, then the access
// token cookie, then a bearer header. Anything unresolvable is anonymous.
// With rejectInvalid set, or on AJAX requests, a presented but invalid
// token ends the request with 401 instead.
func Identify(
	sessions SessionResolver,
	verifier TokenVerifier,
	rejectInvalid bool,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if sessions != nil {
				if actor, ok := sessions.ResolveSession(ctx, r); ok {
					next.ServeHTTP(w, r.WithContext(WithActor(ctx, actor)))
					return
				}
			}

			token := tokenFromCookie(r)
			if token == "" {
				token = ExtractToken(r)
			}

			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := verifier.VerifyAccessToken(ctx, token)
			if err != nil {
				if rejectInvalid || IsAJAX(r) {
					handleAuthError(w, err)
					return
				}
				ctx = context.WithValue(ctx, authErrorKey, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			ctx = WithActor(ctx, policy.Actor{UserID: claims.UserID, Role: claims.Role})
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects anonymous API callers with 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ActorFrom(r.Context()).IsAnonymous() {
			if err, ok := r.Context().Value(authErrorKey).(error); ok {
				handleAuthError(w, err)
				return
			}
			core.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireLogin sends anonymous browsers to loginURL. AJAX callers get 401.
func RequireLogin(loginURL string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ActorFrom(r.Context()).IsAnonymous() {
				next.ServeHTTP(w, r)
				return
			}

			if IsAJAX(r) {
				core.Unauthorized(w, "")
				return
			}

			target := loginURL + "?next=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
		})
	}
}

func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := ActorFrom(r.Context())
		if actor.IsAnonymous() {
			core.Unauthorized(w, "")
			return
		}
		if !actor.IsAdmin() {
			core.JSONError(w, core.ForbiddenError(""))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func tokenFromCookie(r *http.Request) string {
	c, err := r.Cookie(AccessCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func IsAJAX(r *http.Request) bool {
	return r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func handleAuthError(w http.ResponseWriter, err error) {
	if core.IsAppError(err) {
		core.JSONError(w, err)
		return
	}

	switch {
	case errors.Is(err, core.ErrTokenExpired):
		core.JSONError(w, core.TokenExpiredError())
	case errors.Is(err, core.ErrTokenRevoked):
		core.JSONError(w, core.TokenRevokedError())
	default:
		core.JSONError(w, core.TokenInvalidError())
	}
}

func WithActor(ctx context.Context, actor policy.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func ActorFrom(ctx context.Context) policy.Actor {
	if a, ok := ctx.Value(actorKey).(policy.Actor); ok {
		return a
	}
	return policy.Anonymous()
}

// ClaimsFrom returns the verified access token, or nil when the caller
// authenticated some other way.
func ClaimsFrom(ctx context.Context) *AccessTokenClaims {
	if claims, ok := ctx.Value(claimsKey).(*AccessTokenClaims); ok {
		return claims
	}
	return nil
}

func GetUserID(ctx context.Context) int64 {
	return ActorFrom(ctx).UserID
}

func IsAdmin(ctx context.Context) bool {
	return ActorFrom(ctx).IsAdmin()
}

// AngelaMos | 2026
// cookies.go

package auth

import (
	"net/http"
	"time"

	"github.com/carterperez-dev/homeser/internal/middleware"
)

// SetAuthCookies writes both tokens as HttpOnly cookies that expire with
// the tokens themselves.
func SetAuthCookies(w http.ResponseWriter, tokens TokenResponse, secure bool) {
	http.SetCookie(w, authCookie(middleware.AccessCookie, tokens.AccessToken, tokens.ExpiresAt, secure))
	http.SetCookie(w, authCookie(middleware.RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt, secure))
}

func ClearAuthCookies(w http.ResponseWriter, secure bool) {
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func authCookie(name, value string, expires time.Time, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		MaxAge:   max(int(time.Until(expires).Seconds()), 1),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

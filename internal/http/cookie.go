package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"authflow/internal/config"
)

// TokenCookieName is the cookie carrying the session token.
const TokenCookieName = "jwt"

// CookieConfig controls the session cookie attributes.
type CookieConfig struct {
	Secure bool
	MaxAge time.Duration
}

func CookieConfigFrom(cfg *config.Config) CookieConfig {
	return CookieConfig{
		Secure: cfg.Production(),
		MaxAge: cfg.Auth.CookieMaxAge,
	}
}

// setTokenCookie hands the token to the browser. The cookie may outlive the
// token; the gate's own expiry check is authoritative.
func setTokenCookie(c *gin.Context, cc CookieConfig, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cc.MaxAge.Seconds()),
		Expires:  time.Now().Add(cc.MaxAge),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearTokenCookie(c *gin.Context, cc CookieConfig) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   cc.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// tokenFromRequest prefers "Authorization: Bearer <token>" over the cookie.
func tokenFromRequest(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	if token, err := c.Cookie(TokenCookieName); err == nil {
		return token
	}
	return ""
}

package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophaccounts/internal/common"
)

func refreshCookie(value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:        common.RefreshTokenCookieName,
		Value:       value,
		Path:        "/",
		MaxAge:      int(maxAge / time.Second),
		HttpOnly:    true,
		Secure:      true,
		SameSite:    http.SameSiteNoneMode,
		Partitioned: true,
	}
}

// expiredRefreshCookie tells the browser to drop the refresh token.
func expiredRefreshCookie() *http.Cookie {
	return &http.Cookie{
		Name:        common.RefreshTokenCookieName,
		Value:       "",
		Path:        "/",
		Expires:     time.Unix(0, 0),
		HttpOnly:    true,
		Secure:      true,
		SameSite:    http.SameSiteNoneMode,
		Partitioned: true,
	}
}

func refreshTokenFrom(r *http.Request) string {
	c, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/config"
	"github.com/vasapolrittideah/identity-portal/services/auth-service/internal/usecase"
	"github.com/vasapolrittideah/identity-portal/shared/interceptor"
)

// authCookie is the JSON value stored in the auth cookie.
type authCookie struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func setAuthCookie(w http.ResponseWriter, cfg *config.AuthServiceConfig, tokens *usecase.Tokens) {
	raw, _ := json.Marshal(authCookie{
		AccessToken:  "bearer " + tokens.AccessToken,
		RefreshToken: "bearer " + tokens.RefreshToken,
	})

	cookie := baseCookie(cfg)
	cookie.Value = encodeCookieValue(raw)
	cookie.Expires = tokens.RefreshTokenExpiresAt
	http.SetCookie(w, cookie)
}

func clearAuthCookie(w http.ResponseWriter, cfg *config.AuthServiceConfig) {
	cookie := baseCookie(cfg)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	http.SetCookie(w, cookie)
}

func baseCookie(cfg *config.AuthServiceConfig) *http.Cookie {
	cookie := &http.Cookie{
		Name:     cfg.Cookie.Name,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.RunMode == config.RunModeMain {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
		cookie.Domain = cfg.Cookie.Domain
	}
	return cookie
}

func readAuthCookie(r *http.Request, name string) (authCookie, bool) {
	c, err := r.Cookie(name)
	if err != nil || c.Value == "" {
		return authCookie{}, false
	}
	raw, ok := decodeCookieValue(c.Value)
	if !ok {
		return authCookie{}, false
	}
	var value authCookie
	if err := json.Unmarshal(raw, &value); err != nil {
		return authCookie{}, false
	}
	return value, true
}

// cookieAccessToken is a token source for the JWT middleware.
func cookieAccessToken(name string) interceptor.TokenSource {
	return func(r *http.Request) string {
		value, ok := readAuthCookie(r, name)
		if !ok {
			return ""
		}
		return interceptor.StripBearer(value.AccessToken)
	}
}

func cookieRefreshToken(r *http.Request, name string) string {
	value, ok := readAuthCookie(r, name)
	if !ok {
		return ""
	}
	return interceptor.StripBearer(value.RefreshToken)
}

// Cookie values cannot carry the quotes of a JSON document.
func encodeCookieValue(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCookieValue(value string) ([]byte, bool) {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	return raw, err == nil
}

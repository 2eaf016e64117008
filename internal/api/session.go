package api

import (
	"net/http"

	"docquiz/internal/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
)

// NewCookieStore keeps the session in a signed cookie. The session only
// carries the workspace ID and pending notices.
func NewCookieStore(cfg config.SessionConfig) sessions.Store {
	store := cookie.NewStore(cfg.Secret)
	ApplySessionOptions(store, cfg)
	return store
}

// ApplySessionOptions sets the cookie attributes shared by every backend.
func ApplySessionOptions(store sessions.Store, cfg config.SessionConfig) {
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.MaxAge.Seconds()),
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

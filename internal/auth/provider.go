// Package auth provides cookie-backed editor sessions.
package auth

import (
	"context"
	"net/http"
)

// DefaultCookieName is the cookie carrying the session ID.
const DefaultCookieName = "session"

// Provider loads sessions from a SessionStore based on the request cookie.
type Provider struct {
	store      SessionStore
	cookieName string
}

// Option configures a Provider.
type Option func(*Provider)

// WithCookieName sets the cookie name used to load session IDs.
func WithCookieName(name string) Option {
	return func(p *Provider) {
		if name != "" {
			p.cookieName = name
		}
	}
}

// New creates a session provider.
func New(store SessionStore, opts ...Option) *Provider {
	p := &Provider{
		store:      store,
		cookieName: DefaultCookieName,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CookieName returns the name of the session cookie.
func (p *Provider) CookieName() string { return p.cookieName }

// Store returns the backing session store.
func (p *Provider) Store() SessionStore { return p.store }

// Middleware validates the session cookie and injects the session into the
// request context. Requests without a valid session pass through untouched;
// handlers decide whether a session is required.
func (p *Provider) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(p.cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := p.store.Get(r.Context(), cookie.Value)
			if err != nil {
				p.ClearCookie(w, r)
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey{}, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SetCookie writes the session cookie for sess.
func (p *Provider) SetCookie(w http.ResponseWriter, r *http.Request, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    sess.ID,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func (p *Provider) ClearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     p.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r != nil && r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionFromContext returns the session injected by Middleware.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	if ctx == nil {
		return nil, false
	}
	sess, ok := ctx.Value(sessionContextKey{}).(*Session)
	return sess, ok && sess != nil
}

type sessionContextKey struct{}

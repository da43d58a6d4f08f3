// Package auth identifies the console operator. It replaces a client-side admin
// flag with a session cookie verified on every request.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/routes"
)

var authLogger zerolog.Logger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

var ErrNoUser = errors.New("no user ID in context")

// AdminUserID is the identity granted by providers that do not know user names.
const AdminUserID model.UserID = "admin"

type AuthProvider interface {
	WithHeaderAuthorization() func(http.Handler) http.Handler

	GetUserIDFromSession(r *http.Request) (model.UserID, error)

	EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error)

	HandleWebhookUser(w http.ResponseWriter, r *http.Request)
}

// New builds the provider selected by cfg. Keys come from the environment:
// ADMIN_ED25519_PUBKEY for ed25519 and CLERK_API for clerk.
func New(cfg config.AuthConfig, database db.DB) (AuthProvider, error) {
	if !cfg.Enabled {
		authLogger.Warn().Msg("Authentication disabled, every request acts as admin")
		return NewNoAuthProvider(AdminUserID), nil
	}

	switch cfg.Type {
	case config.AuthEd25519:
		key := os.Getenv("ADMIN_ED25519_PUBKEY")
		if key == "" {
			return nil, errors.New("ADMIN_ED25519_PUBKEY is not set")
		}
		return NewEd25519AuthProvider(key, config.HAuthz, AdminUserID)
	case config.AuthClerk:
		key := os.Getenv("CLERK_API")
		if key == "" {
			return nil, errors.New("CLERK_API is not set")
		}
		return NewClerkAuthProvider(key, database), nil
	default:
		return nil, fmt.Errorf("unknown authentication type %q", cfg.Type)
	}
}

// LoginURL is the login page that returns to target afterwards.
func LoginURL(target string) string {
	return routes.AuthLogin + "?redirect=" + url.QueryEscape(target)
}

// RequireUser rejects requests without a user. Page loads are redirected to the
// login page; htmx requests get an Hx-Redirect header and a 401.
func RequireUser(p AuthProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := p.GetUserIDFromSession(r); err != nil {
				login := LoginURL(r.URL.RequestURI())
				if r.Header.Get(config.HHxRequest) == "" {
					http.Redirect(w, r, login, http.StatusFound)
					return
				}
				w.Header().Set(config.HHxRedirect, login)
				http.Error(w, config.HTTPErrUnauthorized, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	clerkuser "github.com/clerk/clerk-sdk-go/v2/user"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/routes"
)

// ClerkAuthProvider delegates sessions to Clerk. Users created in Clerk are
// mirrored into the local users table through the webhook so snapshots can be
// attributed to them.
type ClerkAuthProvider struct {
	db db.DB

	cookieExtractor clerkhttp.AuthorizationOption
}

func NewClerkAuthProvider(clerkKey string, database db.DB) *ClerkAuthProvider {
	clerk.SetKey(clerkKey)

	return &ClerkAuthProvider{
		db: database,
		cookieExtractor: clerkhttp.AuthorizationJWTExtractor(func(r *http.Request) string {
			cookie, err := r.Cookie("__session")
			if err != nil || cookie == nil {
				return ""
			}
			return cookie.Value
		}),
	}
}

func (c *ClerkAuthProvider) WithHeaderAuthorization() func(http.Handler) http.Handler {
	verify := clerkhttp.WithHeaderAuthorization(c.cookieExtractor)
	return func(next http.Handler) http.Handler {
		withUser := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims, ok := clerk.SessionClaimsFromContext(r.Context()); ok {
				r = r.WithContext(ContextWithUserID(r.Context(), model.UserID(claims.Subject)))
			}
			next.ServeHTTP(w, r)
		})
		return verify(withUser)
	}
}

func (c *ClerkAuthProvider) GetUserIDFromSession(r *http.Request) (model.UserID, error) {
	if userID, ok := UserIDFromContext(r.Context()); ok {
		return userID, nil
	}

	claims, ok := clerk.SessionClaimsFromContext(r.Context())
	if !ok {
		return "", ErrNoUser
	}

	usr, err := clerkuser.Get(r.Context(), claims.Subject)
	if err != nil {
		return "", err
	}

	return model.UserID(usr.ID), nil
}

func (c *ClerkAuthProvider) EnforceUserAndGetID(w http.ResponseWriter, r *http.Request) (model.UserID, error) {
	userID, err := c.GetUserIDFromSession(r)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Unauthorized access attempt")
		w.Header().Add(config.HHxRedirect, routes.AuthLogin)
		http.Error(w, config.HTTPErrUnauthorized, http.StatusUnauthorized)
		return "", err
	}
	return userID, nil
}

type clerkEvent struct {
	Data struct {
		clerk.User
	} `json:"data"`

	Type string `json:"type"`
}

func clerkUsername(usr *clerk.User) string {
	if usr.Username != nil && *usr.Username != "" {
		return *usr.Username
	}
	return usr.ID
}

func clerkEmail(usr *clerk.User) string {
	for _, e := range usr.EmailAddresses {
		if usr.PrimaryEmailAddressID != nil && e.ID == *usr.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(usr.EmailAddresses) > 0 {
		return usr.EmailAddresses[0].EmailAddress
	}
	return ""
}

// HandleWebhookUser mirrors user.created, user.updated and user.deleted events.
func (c *ClerkAuthProvider) HandleWebhookUser(w http.ResponseWriter, r *http.Request) {
	l := zerolog.Ctx(r.Context())

	var payload clerkEvent
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		l.Warn().Err(err).Msg("Error decoding webhook payload")
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	usr := &payload.Data.User
	ll := l.With().Str("event", payload.Type).Str("user_id", usr.ID).Logger()
	l = &ll

	switch payload.Type {
	case "user.created", "user.updated":
		_, err := c.db.Exec(
			`INSERT INTO users (id, username, email) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET username = excluded.username, email = excluded.email`,
			usr.ID, clerkUsername(usr), clerkEmail(usr),
		)
		if err != nil {
			l.Error().Err(err).Msg("Error saving user")
			http.Error(w, "Error saving user", http.StatusInternalServerError)
			return
		}
		l.Info().Msg("User saved")
		if payload.Type == "user.created" {
			w.WriteHeader(http.StatusCreated)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case "user.deleted":
		if _, err := c.db.Exec("DELETE FROM users WHERE id = ?", usr.ID); err != nil {
			l.Error().Err(err).Msg("Error deleting user")
			http.Error(w, "Error deleting user", http.StatusInternalServerError)
			return
		}
		l.Info().Msg("User deleted")
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Invalid event type", http.StatusBadRequest)
	}
}

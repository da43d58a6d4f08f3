package auth

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/routes"
)

// RegisterEd25519AuthRoutes registers the challenge login routes
func RegisterEd25519AuthRoutes(mux *http.ServeMux, provider *Ed25519AuthProvider, fsys fs.FS) error {
	tmpl, err := template.ParseFS(
		fsys,
		config.TemplatesLocalDir+"/"+config.TemplateLayout,
		config.TemplatesLocalDir+"/"+config.TemplateAuth,
	)
	if err != nil {
		return fmt.Errorf("loading auth template: %w", err)
	}

	mux.HandleFunc(routes.AuthChallenge, Ed25519ChallengeHandler(provider))
	mux.HandleFunc(routes.AuthVerify, Ed25519VerifyHandler(provider))
	mux.HandleFunc(routes.AuthLogin, Ed25519AuthPageHandler(provider, tmpl))
	mux.HandleFunc(routes.AuthLogout, LogoutHandler)
	return nil
}

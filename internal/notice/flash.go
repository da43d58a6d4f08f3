package notice

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/debemdeboas/backoffice/internal/model"
)

const flashCookie = "flash"

// Flash keeps n in a short-lived cookie so it survives a redirect.
func Flash(w http.ResponseWriter, n model.Notice) {
	raw, err := json.Marshal(n)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   60,
	})
}

// Consume returns the flashed notice, if any, and clears it.
func Consume(w http.ResponseWriter, r *http.Request) *model.Notice {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var n model.Notice
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil
	}
	return &n
}

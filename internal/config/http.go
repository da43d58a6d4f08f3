package config

const (
	HCType        = "Content-Type"
	HETag         = "ETag"
	HCacheControl = "Cache-Control"
	HAccept       = "Accept"
	HAuthz        = "Authorization"

	HHxRedirect = "Hx-Redirect"
	HHxRequest  = "Hx-Request"
	HHxTrigger  = "Hx-Trigger"
	HHxReswap   = "Hx-Reswap"

	CTypeCSS  = "text/css"
	CTypeHTML = "text/html"
	CTypeJSON = "application/json"
	CTypeText = "text/plain"
)

const (
	HTTPErrMethodNotAllowed = "Method not allowed"
	HTTPErrUnauthorized     = "Unauthorized"
	HTTPErrDraftNotFound    = "Draft not found"
)

const (
	CookieTheme       = "theme"
	CookieSyntaxTheme = "syntax-theme"
	CookieDraftID     = "draft-id"
	CookieAuthToken   = "auth_token"
)

package config

const (
	//? These paths must match the paths in the embed directive

	StaticLocalDir = "static"
	StaticURLPath  = "/" + StaticLocalDir + "/"

	TemplatesLocalDir = "templates"

	TemplateLayout    = "layout.html"
	TemplateDashboard = "dashboard.html"
	TemplateList      = "list.html"
	TemplateForm      = "form.html"
	TemplateMessages  = "messages.html"
	TemplateAuth      = "ed25519_auth.html"

	TemplateNameAuth = "ed25519_auth"

	DraftsURLPath = "/drafts/"
)

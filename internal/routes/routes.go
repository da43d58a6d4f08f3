// Package routes defines HTTP route patterns for the console.
package routes

// Pages and assets
const (
	RobotsPath        = "/robots.txt"
	MetricsPath       = "/metrics"
	ThemeOppositeIcon = "/theme/opposite-icon"
	ThemeToggle       = "/theme/toggle"
	SyntaxThemeSet    = "/syntax-theme/set"
	SyntaxThemeGet    = "/syntax-theme/{theme}"

	RootPath = "/"

	// Lists
	ListPath           = "/{resource}"
	RowDelete          = "/{resource}/{id}/delete"
	BlogTogglePublish  = "/blogs/{id}/toggle-publish"
	JobApplications    = "/jobs/{id}/applications"
	ApplicationDelete  = "/jobs/{job}/applications/{id}/delete"
	DropdownServiceAdd = "/dropdown-services/add"
)

// Draft editor
const (
	NewDraft    = "/new/{resource}"
	EditRecord  = "/edit/{resource}/{id}"
	ResumeDraft = "/resume/{draft}"

	Draft        = "/drafts/{draft}"
	DraftEvents  = "/drafts/{draft}/events"
	DraftPayload = "/drafts/{draft}/payload"
	DraftPreview = "/drafts/{draft}/preview"
	DraftSubmit  = "/drafts/{draft}/submit"
	DraftDiscard = "/drafts/{draft}/discard"

	DraftScalar = "/drafts/{draft}/scalar/{field}"
	DraftUpload = "/drafts/{draft}/upload/{field}"

	CollectionAdd    = "/drafts/{draft}/collection/{field}/add"
	CollectionMove   = "/drafts/{draft}/collection/{field}/move"
	EntrySet         = "/drafts/{draft}/collection/{field}/{entry}/set"
	EntryRemove      = "/drafts/{draft}/collection/{field}/{entry}/remove"
	EntryUpload      = "/drafts/{draft}/collection/{field}/{entry}/upload/{sub}"
	CollectionFields = "/drafts/{draft}/collection/{field}"
)

// Auth
const (
	AuthChallenge = "/auth/challenge"
	AuthVerify    = "/auth/verify"
	AuthLogin     = "/auth/login"
	AuthLogout    = "/auth/logout"
	WebhookUser   = "/webhook/user"
)

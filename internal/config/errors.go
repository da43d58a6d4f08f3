package config

const (
	// Database errors
	ErrInitializeDatabaseFmt = "Failed to initialize database: %v"

	// Auth errors
	ErrCreateProviderFmt      = "Failed to create provider: %v"
	ErrAuthHeaderRequired     = "Authorization header required"
	ErrInvalidSignatureFormat = "Invalid signature format"
	ErrInvalidSignature       = "Invalid signature"
	ErrInternalServerError    = "Internal server error"

	// Config errors
	ErrWriteConfigContentFmt = "Failed to write config content: %v"
	ErrCreateTempFileFmt     = "Failed to create temp file: %v"

	// Draft errors
	ErrStartDraft   = "Could not open the form"
	ErrRenderDraft  = "Could not render the form"
	ErrReadUpload   = "Could not read the uploaded file"
	ErrBadIndex     = "Invalid entry index"
	ErrUnknownField = "Unknown field"

	// Challenge errors
	ErrRefreshChallengeFmt = "Failed to refresh challenge"
)

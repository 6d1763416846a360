package constants

// Error messages used in API responses.
// These are the human-readable messages returned in the "message" field.
const (
	// Common messages
	MsgInvalidRequestBody = "Invalid request body"
	MsgInternalError      = "An internal error occurred"

	// Shortener-specific messages
	MsgInvalidURL       = "URL is required"
	MsgLinkNotFound     = "Short URL not found"
	MsgShortIDExhausted = "Could not allocate a unique short id, try again"
)

// Package httperr defines the relay's JSON response envelopes.
//
// Validation, business-rule, and persistence failures use the
// {status, message} envelope; authentication failures use the bare
// {error} envelope. Clients decode into these shapes and fail closed
// on anything else.
package httperr

// ErrorEnvelope is the body of every 400 and 500 response.
type ErrorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// AuthErrorEnvelope is the body of every 401 response.
type AuthErrorEnvelope struct {
	Error string `json:"error"`
}

// NewError creates an ErrorEnvelope with status "error".
func NewError(message string) ErrorEnvelope {
	return ErrorEnvelope{Status: "error", Message: message}
}

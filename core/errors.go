package core

import (
	"errors"
	"fmt"
)

// Identity provider errors
var (
	ErrAuthFailed          = errors.New("identity provider authentication failed") // 502
	ErrSessionInitFailed   = errors.New("verification session init failed")        // 502
	ErrFetchFailed         = errors.New("verification result fetch failed")        // 502
	ErrTimeout             = errors.New("identity provider timed out")             // 504
	ErrProviderUnreachable = errors.New("identity provider unreachable")           // 502
	ErrParse               = errors.New("failed to parse identity document")       // 502
)

// API key errors
var (
	ErrMalformedKey      = errors.New("malformed api key")        // 401
	ErrInvalidKey        = errors.New("invalid api key")          // 401
	ErrKeyInactive       = errors.New("api key is inactive")      // 401
	ErrPrincipalInactive = errors.New("user account is inactive") // 401
)

// Storage errors
var (
	ErrCredentialNotFound   = errors.New("credential not found")   // 404
	ErrPrincipalNotFound    = errors.New("principal not found")    // 404
	ErrVerificationNotFound = errors.New("verification not found") // 404
	ErrPrefixTaken          = errors.New("credential prefix already in use")
)

// Validation errors (client input)
var (
	ErrCredentialNameRequired = errors.New("credential name is required") // 400
	ErrCredentialNameTooLong  = errors.New("credential name is too long") // 400
	ErrRedirectURLRequired    = errors.New("redirect url is required")    // 400
	ErrInvalidRedirectURL     = errors.New("invalid redirect url")        // 400
	ErrForbidden              = errors.New("not allowed")                 // 403
)

// Config errors (server-side configuration)
var (
	ErrStorageRequired        = errors.New("storage adapter is required")     // 500
	ErrProviderKeyRequired    = errors.New("provider api key is required")    // 500
	ErrProviderSecretRequired = errors.New("provider api secret is required") // 500
	ErrInvalidBaseURL         = errors.New("provider base url is invalid")    // 500
)

// ProviderError describes a failed call to the identity provider. It matches
// both its kind (ErrSessionInitFailed, ...) and its cause with errors.Is.
type ProviderError struct {
	Op         string
	Err        error
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := e.Err.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// Error codes surfaced to API clients.
const (
	CodeAuthFailed          = "AUTH_FAILED"
	CodeSessionInitFailed   = "SESSION_INIT_FAILED"
	CodeFetchFailed         = "FETCH_FAILED"
	CodeTimeout             = "TIMEOUT"
	CodeProviderUnreachable = "PROVIDER_UNREACHABLE"
	CodeParseError          = "PARSE_ERROR"
	CodeMalformedKey        = "MALFORMED_KEY"
	CodeInvalidKey          = "INVALID_KEY"
	CodeKeyInactive         = "KEY_INACTIVE"
	CodePrincipalInactive   = "PRINCIPAL_INACTIVE"
	CodeNotFound            = "NOT_FOUND"
	CodeBadRequest          = "BAD_REQUEST"
	CodeForbidden           = "FORBIDDEN"
	CodeInternal            = "INTERNAL"
)

// ErrorCode maps an error to its taxonomy code. Timeouts win over the phase
// that timed out, since that is the part a caller can act on.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return CodeTimeout
	case errors.Is(err, ErrAuthFailed):
		return CodeAuthFailed
	case errors.Is(err, ErrSessionInitFailed):
		return CodeSessionInitFailed
	case errors.Is(err, ErrParse):
		return CodeParseError
	case errors.Is(err, ErrFetchFailed):
		return CodeFetchFailed
	case errors.Is(err, ErrProviderUnreachable):
		return CodeProviderUnreachable
	case errors.Is(err, ErrMalformedKey):
		return CodeMalformedKey
	case errors.Is(err, ErrInvalidKey):
		return CodeInvalidKey
	case errors.Is(err, ErrKeyInactive):
		return CodeKeyInactive
	case errors.Is(err, ErrPrincipalInactive):
		return CodePrincipalInactive
	case errors.Is(err, ErrCredentialNotFound),
		errors.Is(err, ErrPrincipalNotFound),
		errors.Is(err, ErrVerificationNotFound):
		return CodeNotFound
	case errors.Is(err, ErrCredentialNameRequired),
		errors.Is(err, ErrCredentialNameTooLong),
		errors.Is(err, ErrRedirectURLRequired),
		errors.Is(err, ErrInvalidRedirectURL):
		return CodeBadRequest
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}

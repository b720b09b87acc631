package engine

import "fmt"

// ErrorKind enumerates the IndieAuth/OAuth error codes the engine can
// produce, mirroring the teacher's split between displayedAuthErr (shown
// as a page) and redirectedAuthErr (sent back via redirect) in
// server/oauth2.go, generalized into one typed error the HTTP surface can
// switch on instead of string-matching.
type ErrorKind string

const (
	ErrInvalidRequest          ErrorKind = "invalid_request"
	ErrUnsupportedResponseType ErrorKind = "unsupported_response_type"
	ErrAccessDenied            ErrorKind = "access_denied"
	ErrInvalidGrant            ErrorKind = "invalid_grant"
	ErrInvalidClient           ErrorKind = "invalid_client"
	ErrUnsupportedGrantType    ErrorKind = "unsupported_grant_type"
	ErrServerError             ErrorKind = "server_error"
)

// Error is the engine's error type. RedirectURIUntrusted marks a failure
// discovered before redirect_uri was validated against client_id — the
// HTTP surface must render an error page rather than redirect, since
// redirecting could itself be the attack (spec §4.9.1 step 2/3).
type Error struct {
	Kind                  ErrorKind
	Description           string
	RedirectURIUntrusted  bool
	Cause                 error
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an Error that is safe to redirect.
func NewError(kind ErrorKind, description string) *Error {
	return &Error{Kind: kind, Description: description}
}

// NewUntrustedError builds an Error discovered before redirect_uri could
// be trusted; the caller must not redirect there.
func NewUntrustedError(kind ErrorKind, description string) *Error {
	return &Error{Kind: kind, Description: description, RedirectURIUntrusted: true}
}

// Wrap builds a server_error Error around an unexpected internal failure
// (repository I/O, etc.), never exposing cause details to the client.
func Wrap(cause error, description string) *Error {
	return &Error{Kind: ErrServerError, Description: description, Cause: cause}
}

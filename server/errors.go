package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/myquay/talos/engine"
)

// statusForKind maps an engine.ErrorKind to the HTTP status RFC 6749
// associates with it, grounded on the teacher's tokenErr status-code
// choices in server/oauth2.go.
func statusForKind(kind engine.ErrorKind) int {
	switch kind {
	case engine.ErrServerError:
		return http.StatusInternalServerError
	case engine.ErrAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}

// writeTokenError renders an engine.Error as the JSON error body RFC 6749
// §5.2 requires of the token endpoint, grounded on server/oauth2.go's
// tokenErr helper.
func writeTokenError(logger *slog.Logger, w http.ResponseWriter, err *engine.Error) {
	if err.Cause != nil {
		logger.Error("token endpoint error", "kind", err.Kind, "cause", err.Cause)
	}
	body := struct {
		Error       string `json:"error"`
		Description string `json:"error_description,omitempty"`
	}{string(err.Kind), err.Description}
	data, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForKind(err.Kind))
	w.Write(data)
}

// writeAuthorizationError renders an engine.Error either as a redirect
// back to the client (the normal case, RFC 6749 §4.1.2.1) or as a plain
// error page when RedirectURIUntrusted is set, following the teacher's
// displayedAuthErr/redirectedAuthErr split in server/oauth2.go.
func writeAuthorizationError(logger *slog.Logger, w http.ResponseWriter, r *http.Request, err *engine.Error, redirectURI, state string) {
	if err.Cause != nil {
		logger.Error("authorization endpoint error", "kind", err.Kind, "cause", err.Cause)
	}
	if err.RedirectURIUntrusted || redirectURI == "" {
		http.Error(w, err.Description, statusForKind(err.Kind))
		return
	}
	v := url.Values{"error": {string(err.Kind)}}
	if state != "" {
		v.Set("state", state)
	}
	if err.Description != "" {
		v.Set("error_description", err.Description)
	}
	sep := "?"
	if strings.Contains(redirectURI, "?") {
		sep = "&"
	}
	http.Redirect(w, r, redirectURI+sep+v.Encode(), http.StatusSeeOther)
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

package server

import (
	"html/template"
	"net/http"

	"github.com/myquay/talos/storage"
)

// templates holds the inline consent and provider-selection pages,
// grounded on the teacher's html/template-based approval page
// (server/templates.go) but trimmed to plain template literals since
// Talos ships no theme/static-asset pipeline.
type templates struct {
	consent      *template.Template
	select_      *template.Template
	enterProfile *template.Template
}

func loadTemplates() *templates {
	return &templates{
		consent:      template.Must(template.New("consent").Parse(consentHTML)),
		select_:      template.Must(template.New("select").Parse(selectProviderHTML)),
		enterProfile: template.Must(template.New("enter-profile").Parse(enterProfileHTML)),
	}
}

type consentData struct {
	ClientName    string
	ClientLogoURI string
	ProfileURL    string
	Scopes        []string
	SessionID     string
}

func (t *templates) renderConsent(w http.ResponseWriter, data consentData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.consent.Execute(w, data)
}

type selectProviderData struct {
	SessionID string
	Providers []storage.DiscoveredProvider
}

func (t *templates) renderSelectProvider(w http.ResponseWriter, data selectProviderData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.select_.Execute(w, data)
}

type enterProfileData struct {
	HiddenFields map[string]string
}

func (t *templates) renderEnterProfile(w http.ResponseWriter, data enterProfileData) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return t.enterProfile.Execute(w, data)
}

const consentHTML = `<!DOCTYPE html>
<title>Sign in</title>
<h1>{{.ClientName}} wants to act as you</h1>
<p>You are signing in as <strong>{{.ProfileURL}}</strong>.</p>
{{if .Scopes}}
<p>This will grant access to:</p>
<ul>{{range .Scopes}}<li>{{.}}</li>{{end}}</ul>
{{end}}
<form method="post" action="/consent">
  <input type="hidden" name="session_id" value="{{.SessionID}}">
  <button type="submit" name="approval" value="approve">Approve</button>
  <button type="submit" name="approval" value="deny">Deny</button>
</form>
`

const selectProviderHTML = `<!DOCTYPE html>
<title>Choose how to sign in</title>
<h1>Choose how to sign in</h1>
<ul>
{{$sessionID := .SessionID}}
{{range .Providers}}
  <li><a href="/auth/select?session_id={{$sessionID}}&provider={{.ProviderType}}">{{.ProviderType}} ({{.Username}})</a></li>
{{end}}
</ul>
`

const enterProfileHTML = `<!DOCTYPE html>
<title>Sign in</title>
<h1>Sign in with your website</h1>
<form method="get" action="/auth">
  {{range $k, $v := .HiddenFields}}<input type="hidden" name="{{$k}}" value="{{$v}}">{{end}}
  <input type="text" name="me" placeholder="https://example.com" required>
  <button type="submit">Sign in</button>
</form>
`

package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/platinummonkey/samlfed/pkg/logout"
	"github.com/platinummonkey/samlfed/pkg/saml"
)

// postPage is a self-submitting form delivering a POST-binding message.
type postPage struct {
	Destination string
	Param       string
	Value       string
	RelayState  string
}

var postPageTemplate = template.Must(template.New("post-page").Parse(`<!DOCTYPE html>
<html>
<head><title>Working...</title></head>
<body onload="document.forms[0].submit()">
<noscript><p>JavaScript is disabled. Click Continue to proceed.</p></noscript>
<form method="post" action="{{.Destination}}">
<input type="hidden" name="{{.Param}}" value="{{.Value}}"/>
{{if .RelayState}}<input type="hidden" name="RelayState" value="{{.RelayState}}"/>{{end}}
<noscript><input type="submit" value="Continue"/></noscript>
</form>
</body>
</html>`))

func (s *Server) renderPostPage(w http.ResponseWriter, page postPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := postPageTemplate.Execute(w, page); err != nil {
		s.logger.WithError(err).Error("post page rendering failed")
	}
}

// signedOutPage confirms the initiator's logout. It embeds the fan-out
// callback in a hidden iframe and delivers the logout response back to the
// initiating relying party.
type signedOutPage struct {
	Nonce       string
	CallbackURL string
	// Exactly one of RedirectURL or Form carries the logout response.
	RedirectURL string
	Form        *postPage
}

var signedOutTemplate = template.Must(template.New("signed-out").Parse(`<!DOCTYPE html>
<html>
<head><title>Signed out</title></head>
<body>
<p>You have been signed out.</p>
{{if .CallbackURL}}<iframe width="0" height="0" style="display:none" src="{{.CallbackURL}}"></iframe>{{end}}
{{if .RedirectURL}}<a id="continue" href="{{.RedirectURL}}">Return to the application</a>
<script nonce="{{.Nonce}}">setTimeout(function(){window.location=document.getElementById("continue").href;},500);</script>{{end}}
{{if .Form}}<form method="post" action="{{.Form.Destination}}">
<input type="hidden" name="{{.Form.Param}}" value="{{.Form.Value}}"/>
{{if .Form.RelayState}}<input type="hidden" name="RelayState" value="{{.Form.RelayState}}"/>{{end}}
</form>
<script nonce="{{.Nonce}}">setTimeout(function(){document.forms[0].submit();},500);</script>{{end}}
</body>
</html>`))

func (s *Server) renderSignedOutPage(w http.ResponseWriter, page signedOutPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy",
		"default-src 'none'; frame-src 'self'; style-src 'unsafe-inline'; script-src 'nonce-"+page.Nonce+"'")
	if err := signedOutTemplate.Execute(w, page); err != nil {
		s.logger.WithError(err).Error("signed-out page rendering failed")
	}
}

// fanoutFrame is one hidden iframe of the fan-out document. URL is set for
// redirect-binding notifications; Fragment carries a POST form fragment
// rendered through the iframe's srcdoc.
type fanoutFrame struct {
	URL      string
	Fragment string
}

// fanoutPage is the front-channel logout document: one hidden iframe per
// notified participant.
type fanoutPage struct {
	Nonce  string
	Frames []fanoutFrame
}

var fanoutTemplate = template.Must(template.New("logout-fanout").Parse(`<!DOCTYPE html>
<html>
<head><title>Logout</title></head>
<body>
{{range .Frames}}{{if .URL}}<iframe width="0" height="0" style="display:none" src="{{.URL}}"></iframe>
{{else}}<iframe width="0" height="0" style="display:none" srcdoc="{{.Fragment}}"></iframe>
{{end}}{{end}}</body>
</html>`))

func (s *Server) renderFanoutPage(w http.ResponseWriter, notifications []logout.Notification, nonce string) {
	page := fanoutPage{Nonce: nonce, Frames: make([]fanoutFrame, 0, len(notifications))}
	origins := make([]string, 0, len(notifications))
	for _, n := range notifications {
		if n.Binding == saml.BindingPost {
			page.Frames = append(page.Frames, fanoutFrame{Fragment: n.Payload})
		} else {
			page.Frames = append(page.Frames, fanoutFrame{URL: n.Payload})
		}
		if n.Origin != "" {
			origins = append(origins, n.Origin)
		}
	}

	frameSrc := "'none'"
	if len(origins) > 0 {
		frameSrc = strings.Join(origins, " ")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy",
		"default-src 'none'; frame-src "+frameSrc+"; style-src 'unsafe-inline'; script-src 'nonce-"+nonce+"'")
	if err := fanoutTemplate.Execute(w, page); err != nil {
		s.logger.WithError(err).Error("fan-out page rendering failed")
	}
}

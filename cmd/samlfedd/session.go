package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/saml"
)

// The daemon runs behind an authenticating reverse proxy that injects the
// signed-in subject into these headers. Requests without them are treated
// as anonymous.
const (
	headerSubject     = "X-Auth-Subject"
	headerSessionID   = "X-Auth-Session"
	headerAuthMethod  = "X-Auth-Method"
	headerAuthTime    = "X-Auth-Time"
	headerClientList  = "X-Auth-Clients"
	clientListDivider = ","
)

// headerSession adapts the proxy headers to host.UserSession.
type headerSession struct {
	subject    host.Subject
	sessionID  string
	clientList []string
}

func resolveHeaderSession(r *http.Request) host.UserSession {
	subjectID := r.Header.Get(headerSubject)
	if subjectID == "" {
		return nil
	}

	authnTime := time.Now().UTC()
	if raw := r.Header.Get(headerAuthTime); raw != "" {
		if parsed, err := saml.ParseInstant(raw); err == nil {
			authnTime = parsed
		}
	}

	var clientList []string
	if raw := r.Header.Get(headerClientList); raw != "" {
		for _, entry := range strings.Split(raw, clientListDivider) {
			if entry = strings.TrimSpace(entry); entry != "" {
				clientList = append(clientList, entry)
			}
		}
	}

	return &headerSession{
		subject: host.Subject{
			ID:                   subjectID,
			AuthenticationMethod: r.Header.Get(headerAuthMethod),
			AuthenticationTime:   authnTime,
		},
		sessionID:  r.Header.Get(headerSessionID),
		clientList: clientList,
	}
}

func (s *headerSession) GetUser(context.Context) (*host.Subject, error) {
	subject := s.subject
	return &subject, nil
}

func (s *headerSession) GetSessionID(context.Context) (string, error) {
	return s.sessionID, nil
}

func (s *headerSession) GetClientList(context.Context) ([]string, error) {
	return s.clientList, nil
}

// subjectProfile issues the minimal claim set for a subject. Deployments
// with richer directories replace this with their own host.ProfileService.
type subjectProfile struct{}

func (subjectProfile) GetClaims(_ context.Context, subject *host.Subject, _ *host.Client, _ []string) ([]host.Claim, error) {
	claims := []host.Claim{
		{Type: saml.ClaimNameID, Value: subject.ID},
	}
	if strings.Contains(subject.ID, "@") {
		claims = append(claims, host.Claim{Type: saml.ClaimEmail, Value: subject.ID})
	}
	return claims, nil
}

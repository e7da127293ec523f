package host

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock supplies current time to every component that checks validity
// windows. Tests swap in clockwork.NewFakeClock.
type Clock = clockwork.Clock

// ProtocolSAML2 marks a client registered for the SAML 2.0 protocol. The
// host may register clients for other protocols; the engine refuses them.
const ProtocolSAML2 = "saml2p"

// ErrClientNotFound is returned by ClientStore when no enabled client
// matches the requested identifier.
var ErrClientNotFound = errors.New("host: client not found")

// Client is the host's registration record for a relying party.
type Client struct {
	ID                           string
	Enabled                      bool
	ProtocolType                 string
	RedirectURIs                 []string
	PostLogoutRedirectURIs       []string
	IdentityProviderRestrictions []string
	SSOLifetime                  time.Duration
}

// AllowsIdentityProvider reports whether the client may be routed to the
// named upstream identity provider. An empty restriction list allows all.
func (c *Client) AllowsIdentityProvider(name string) bool {
	if len(c.IdentityProviderRestrictions) == 0 {
		return true
	}
	for _, allowed := range c.IdentityProviderRestrictions {
		if allowed == name {
			return true
		}
	}
	return false
}

// ClientStore resolves client registrations by entity identifier.
type ClientStore interface {
	// FindEnabledClientByID returns the enabled client registered under
	// id, or ErrClientNotFound.
	FindEnabledClientByID(ctx context.Context, id string) (*Client, error)
}

// Subject is the currently authenticated user, possibly anonymous.
type Subject struct {
	ID                   string
	AuthenticationMethod string
	AuthenticationTime   time.Time
}

// IsAnonymous reports whether the subject carries no identity.
func (s *Subject) IsAnonymous() bool {
	return s == nil || s.ID == ""
}

// UserSession exposes the host's per-browser session state.
type UserSession interface {
	// GetUser returns the authenticated subject, or an anonymous one.
	GetUser(ctx context.Context) (*Subject, error)
	// GetSessionID returns the host session identifier.
	GetSessionID(ctx context.Context) (string, error)
	// GetClientList returns the ids of relying parties the subject is
	// currently signed into.
	GetClientList(ctx context.Context) ([]string, error)
}

// Claim is a single issued claim.
type Claim struct {
	Type  string
	Value string
}

// ProfileService issues the claims for a subject in the context of one
// client. requestedClaimTypes narrows the set when non-empty.
type ProfileService interface {
	GetClaims(ctx context.Context, subject *Subject, client *Client, requestedClaimTypes []string) ([]Claim, error)
}

// MessageStore persists transient protocol state (logout notification
// contexts, authorization parameters) between the request that creates it
// and the callback that consumes it.
type MessageStore interface {
	// Write persists data and returns its id.
	Write(ctx context.Context, data []byte) (string, error)
	// Read returns the data stored under id, or ErrMessageNotFound.
	Read(ctx context.Context, id string) ([]byte, error)
	// Delete removes the data stored under id. Deleting a missing id is
	// not an error.
	Delete(ctx context.Context, id string) error
}

// ErrMessageNotFound is returned by MessageStore.Read for unknown ids.
var ErrMessageNotFound = errors.New("host: message not found")

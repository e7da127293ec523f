package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/samlfed/pkg/host"
)

// clientsDocument is the on-disk YAML layout of the client registry.
type clientsDocument struct {
	Clients []clientSpec `yaml:"clients"`
}

type clientSpec struct {
	ID                           string   `yaml:"id"`
	Disabled                     bool     `yaml:"disabled"`
	RedirectURIs                 []string `yaml:"redirect_uris"`
	PostLogoutRedirectURIs       []string `yaml:"post_logout_redirect_uris"`
	IdentityProviderRestrictions []string `yaml:"identity_provider_restrictions"`
	SSOLifetime                  string   `yaml:"sso_lifetime"`
}

// fileClientStore is a host.ClientStore loaded once at startup from a
// YAML registry.
type fileClientStore struct {
	clients map[string]*host.Client
}

func loadClientStore(path string) (*fileClientStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read client registry: %w", err)
	}
	var doc clientsDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse client registry: %w", err)
	}

	clients := make(map[string]*host.Client, len(doc.Clients))
	for _, spec := range doc.Clients {
		if spec.ID == "" {
			return nil, fmt.Errorf("client registry entry without an id")
		}
		if _, exists := clients[spec.ID]; exists {
			return nil, fmt.Errorf("duplicate client id %q", spec.ID)
		}
		client := &host.Client{
			ID:                           spec.ID,
			Enabled:                      !spec.Disabled,
			ProtocolType:                 host.ProtocolSAML2,
			RedirectURIs:                 spec.RedirectURIs,
			PostLogoutRedirectURIs:       spec.PostLogoutRedirectURIs,
			IdentityProviderRestrictions: spec.IdentityProviderRestrictions,
		}
		if spec.SSOLifetime != "" {
			lifetime, err := time.ParseDuration(spec.SSOLifetime)
			if err != nil {
				return nil, fmt.Errorf("client %q: invalid sso_lifetime: %w", spec.ID, err)
			}
			client.SSOLifetime = lifetime
		}
		clients[spec.ID] = client
	}
	return &fileClientStore{clients: clients}, nil
}

func (s *fileClientStore) FindEnabledClientByID(_ context.Context, id string) (*host.Client, error) {
	client, ok := s.clients[id]
	if !ok || !client.Enabled {
		return nil, host.ErrClientNotFound
	}
	return client, nil
}

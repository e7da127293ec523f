package server

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/keys"
	"github.com/platinummonkey/samlfed/pkg/logout"
	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/response"
	"github.com/platinummonkey/samlfed/pkg/validation"
)

// Endpoint paths served by the engine.
const (
	PathSSO         = "/saml/sso"
	PathSLO         = "/saml/slo"
	PathSLOCallback = "/saml/slo/callback"
	PathArtifact    = "/saml/artifact"
	PathMetadata    = "/saml/metadata"
)

// SessionResolver returns the host session bound to an inbound request.
// A nil return means no browser session exists yet.
type SessionResolver func(r *http.Request) host.UserSession

// Config holds the server's protocol identity.
type Config struct {
	// IssuerEntityID is this identity provider's entity ID.
	IssuerEntityID string
	// BaseURL is the externally visible base URL, used to build the
	// endpoint locations published in metadata.
	BaseURL string
	// MetricsEnabled exposes /metrics when a registry is wired.
	MetricsEnabled bool
}

// Deps are the engine components the server routes requests into.
// Artifact, Messages, Registry, and Metrics may be nil; the matching
// surface is then not served.
type Deps struct {
	Validator *validation.RequestValidator
	Responses *response.SignInResponseGenerator
	Logouts   *logout.Generator
	Fanout    *logout.Orchestrator
	Artifact  http.Handler
	Messages  host.MessageStore
	Sessions  SessionResolver
	Keys      keys.Service
	Registry  *prometheus.Registry
	Metrics   *observability.Metrics
	Logger    *observability.Logger
}

// Server is the HTTP front of the federation engine.
type Server struct {
	config  Config
	deps    Deps
	router  *mux.Router
	handler http.Handler
	logger  *observability.Logger
}

// NewServer creates the server and wires its routes.
func NewServer(config Config, deps Deps) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		router: mux.NewRouter(),
		logger: deps.Logger.WithField("component", "server"),
	}
	s.setupRoutes()
	s.handler = Chain(
		RecoveryMiddleware(s.logger),
		LoggingMiddleware(s.logger, deps.Metrics),
	)(s.router)
	return s
}

// setupRoutes configures the protocol and operational routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc(PathSSO, s.handleSignIn).Methods("GET", "POST")
	s.router.HandleFunc(PathSLO, s.handleLogout).Methods("GET", "POST")
	s.router.HandleFunc(PathSLOCallback, s.handleLogoutCallback).Methods("GET")
	if s.deps.Artifact != nil {
		s.router.Handle(PathArtifact, s.deps.Artifact).Methods("POST")
	}
	s.router.HandleFunc(PathMetadata, s.handleMetadata).Methods("GET")

	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	if s.config.MetricsEnabled && s.deps.Registry != nil {
		s.router.Handle("/metrics", observability.Handler(s.deps.Registry)).Methods("GET")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// session resolves the host session for a request, or nil.
func (s *Server) session(r *http.Request) host.UserSession {
	if s.deps.Sessions == nil {
		return nil
	}
	return s.deps.Sessions(r)
}

// clientAddress extracts the requester's address for subject confirmation
// data, preferring the first X-Forwarded-For hop.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	if addr, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return addr
	}
	return r.RemoteAddr
}

// countValidation records the validation outcome metric for one message type.
func (s *Server) countValidation(messageType string, result *validation.Result) {
	if s.deps.Metrics == nil {
		return
	}
	outcome := "success"
	if result.Err != nil {
		outcome = string(result.Err.Kind)
	}
	s.deps.Metrics.RequestsValidatedTotal.WithLabelValues(messageType, outcome).Inc()
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, kind, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":             kind,
		"error_description": description,
	})
}

// writeProtocolError maps a validation failure onto an HTTP status.
func (s *Server) writeProtocolError(w http.ResponseWriter, perr *validation.ProtocolError) {
	status := http.StatusBadRequest
	if perr.Kind == validation.KindServerError {
		status = http.StatusInternalServerError
	}
	writeError(w, status, string(perr.Kind), perr.Description)
}

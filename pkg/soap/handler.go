package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"net/http"

	"github.com/beevik/etree"
	xrv "github.com/mattermost/xml-roundtrip-validator"

	"github.com/platinummonkey/samlfed/pkg/artifact"
	"github.com/platinummonkey/samlfed/pkg/host"
	"github.com/platinummonkey/samlfed/pkg/observability"
	"github.com/platinummonkey/samlfed/pkg/saml"
)

const maxEnvelopeSize = 1 << 20

// Handler serves the artifact resolution service over SOAP 1.1.
type Handler struct {
	issuer    string
	artifacts artifact.Store
	clock     host.Clock
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewHandler creates an artifact resolution handler. issuer is the
// identity provider's entity ID; only artifacts we issued resolve.
func NewHandler(issuer string, artifacts artifact.Store, clock host.Clock, logger *observability.Logger, metrics *observability.Metrics) *Handler {
	return &Handler{
		issuer:    issuer,
		artifacts: artifacts,
		clock:     clock,
		logger:    logger.WithField("component", "artifact_resolution"),
		metrics:   metrics,
	}
}

// ServeHTTP implements the SOAP binding for ArtifactResolve.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxEnvelopeSize))
	if err != nil {
		http.Error(w, "failed to read request", http.StatusBadRequest)
		return
	}
	if err := xrv.Validate(bytes.NewReader(body)); err != nil {
		http.Error(w, "malformed envelope", http.StatusBadRequest)
		return
	}

	var envelope resolveEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil || envelope.Body.ArtifactResolve == nil {
		http.Error(w, "malformed envelope", http.StatusBadRequest)
		return
	}
	resolve := envelope.Body.ArtifactResolve

	record, found := h.consume(r, resolve.Artifact)
	response, err := h.buildArtifactResponse(resolve.ID, record, found)
	if err != nil {
		h.logger.WithError(err).Error("failed to build artifact response")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("SOAPAction", Action)
	w.Write(response)
}

// consume pulls the record atomically: the first resolution wins, every
// later attempt sees nothing.
func (h *Handler) consume(r *http.Request, encoded string) ([]byte, bool) {
	art, err := artifact.Decode(encoded)
	if err != nil || !art.IssuedBy(h.issuer) {
		h.miss(r, "malformed or foreign artifact")
		return nil, false
	}

	record, err := h.artifacts.Consume(r.Context(), encoded)
	if errors.Is(err, artifact.ErrNotFound) {
		h.miss(r, "unknown or already consumed artifact")
		return nil, false
	}
	if err != nil {
		h.miss(r, "artifact store failure")
		h.logger.WithError(err).Error("artifact consume failed")
		return nil, false
	}

	if h.metrics != nil {
		h.metrics.ArtifactsResolvedTotal.Inc()
	}
	h.logger.WithField("client_id", record.ClientID).Debug("resolved artifact")
	return record.Response, true
}

func (h *Handler) miss(r *http.Request, reason string) {
	if h.metrics != nil {
		h.metrics.ArtifactsMissedTotal.Inc()
	}
	h.logger.WithFields(map[string]interface{}{
		"remote_addr": r.RemoteAddr,
		"reason":      reason,
	}).Warn("artifact resolution miss")
}

// buildArtifactResponse renders the SOAP reply. A miss yields an empty
// ArtifactResponse with a Success status rather than a fault.
func (h *Handler) buildArtifactResponse(inResponseTo string, payload []byte, found bool) ([]byte, error) {
	envelope := etree.NewElement("SOAP-ENV:Envelope")
	envelope.CreateAttr("xmlns:SOAP-ENV", EnvelopeNamespace)
	body := envelope.CreateElement("SOAP-ENV:Body")

	artifactResponse := body.CreateElement("samlp:ArtifactResponse")
	artifactResponse.CreateAttr("xmlns:samlp", saml.ProtocolNamespace)
	artifactResponse.CreateAttr("xmlns:saml", saml.AssertionNamespace)
	artifactResponse.CreateAttr("ID", saml.MessageID())
	artifactResponse.CreateAttr("Version", saml.Version)
	artifactResponse.CreateAttr("IssueInstant", saml.Instant(h.clock.Now()))
	if inResponseTo != "" {
		artifactResponse.CreateAttr("InResponseTo", inResponseTo)
	}

	issuer := artifactResponse.CreateElement("saml:Issuer")
	issuer.CreateAttr("Format", saml.NameIDFormatEntity)
	issuer.SetText(h.issuer)

	status := artifactResponse.CreateElement("samlp:Status")
	status.CreateElement("samlp:StatusCode").CreateAttr("Value", saml.StatusSuccess)

	if found {
		embedded := etree.NewDocument()
		if err := embedded.ReadFromBytes(payload); err != nil {
			return nil, err
		}
		artifactResponse.AddChild(embedded.Root())
	}

	doc := etree.NewDocument()
	doc.SetRoot(envelope)
	return doc.WriteToBytes()
}

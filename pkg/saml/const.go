package saml

// SAML 2.0 protocol version. The engine accepts and produces nothing else.
const Version = "2.0"

// XML namespaces used across protocol messages.
const (
	ProtocolNamespace  = "urn:oasis:names:tc:SAML:2.0:protocol"
	AssertionNamespace = "urn:oasis:names:tc:SAML:2.0:assertion"
	MetadataNamespace  = "urn:oasis:names:tc:SAML:2.0:metadata"
)

// Binding identifies the HTTP transport mechanism for a SAML message.
type Binding string

// Bindings defined by SAML 2.0 bindings (OASIS saml-bindings-2.0-os).
const (
	BindingRedirect Binding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
	BindingPost     Binding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
	BindingArtifact Binding = "urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Artifact"
	BindingSOAP     Binding = "urn:oasis:names:tc:SAML:2.0:bindings:SOAP"
)

// Top-level status codes (saml-core-2.0-os §3.2.2.2).
const (
	StatusSuccess       = "urn:oasis:names:tc:SAML:2.0:status:Success"
	StatusRequester     = "urn:oasis:names:tc:SAML:2.0:status:Requester"
	StatusResponder     = "urn:oasis:names:tc:SAML:2.0:status:Responder"
	StatusPartialLogout = "urn:oasis:names:tc:SAML:2.0:status:PartialLogout"
)

// NameID formats the engine understands.
const (
	NameIDFormatUnspecified = "urn:oasis:names:tc:SAML:1.1:nameid-format:unspecified"
	NameIDFormatEmail       = "urn:oasis:names:tc:SAML:1.1:nameid-format:emailAddress"
	NameIDFormatPersistent  = "urn:oasis:names:tc:SAML:2.0:nameid-format:persistent"
	NameIDFormatTransient   = "urn:oasis:names:tc:SAML:2.0:nameid-format:transient"
	NameIDFormatEntity      = "urn:oasis:names:tc:SAML:2.0:nameid-format:entity"
)

// AuthnContext class references.
const (
	AuthnContextPassword           = "urn:oasis:names:tc:SAML:2.0:ac:classes:Password"
	AuthnContextPasswordProtected  = "urn:oasis:names:tc:SAML:2.0:ac:classes:PasswordProtectedTransport"
	AuthnContextUnspecified        = "urn:oasis:names:tc:SAML:2.0:ac:classes:unspecified"
	ConfirmationMethodBearer       = "urn:oasis:names:tc:SAML:2.0:cm:bearer"
	AttributeNameFormatBasic       = "urn:oasis:names:tc:SAML:2.0:attrname-format:basic"
	AttributeNameFormatURI         = "urn:oasis:names:tc:SAML:2.0:attrname-format:uri"
	AttributeNameFormatUnspecified = "urn:oasis:names:tc:SAML:2.0:attrname-format:unspecified"
	LogoutReasonUser               = "urn:oasis:names:tc:SAML:2.0:logout:user"
	LogoutReasonAdmin              = "urn:oasis:names:tc:SAML:2.0:logout:admin"
)

// IdpHintScheme prefixes an AuthnContextClassRef that names a preferred
// upstream identity provider rather than an authentication context class.
const IdpHintScheme = "idp:"

// Claim types issued into assertions. These follow the common claim URIs so
// that off-the-shelf service providers map them without configuration.
const (
	ClaimNameID       = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"
	ClaimName         = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"
	ClaimEmail        = "http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"
	ClaimAuthnMethod  = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationmethod"
	ClaimAuthnInstant = "http://schemas.microsoft.com/ws/2008/06/identity/claims/authenticationinstant"

	AuthnMethodPassword    = "urn:oasis:names:tc:SAML:2.0:ac:classes:Password"
	AuthnMethodUnspecified = "urn:oasis:names:tc:SAML:2.0:ac:classes:unspecified"
)

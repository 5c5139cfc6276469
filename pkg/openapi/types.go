// Package openapi loads the subset of an OpenAPI 3 document this module's
// invocation engine needs: server URLs, per-operation parameter and body
// bindings, and security scheme/requirement declarations.
package openapi

import (
	"github.com/ndsev/zswag-sub000/pkg/paramvalue"
	"github.com/ndsev/zswag-sub000/pkg/uri"
)

// ParamLocation is where a parameter is bound on the wire.
type ParamLocation string

const (
	LocationPath   ParamLocation = "path"
	LocationQuery  ParamLocation = "query"
	LocationHeader ParamLocation = "header"
)

// Parameter binds one request part (named by Field, a zserio member path or
// "*" for the whole request object) to a position on the wire.
type Parameter struct {
	Location     ParamLocation
	Ident        string
	Field        string
	DefaultValue string
	Format       paramvalue.Format
	Style        paramvalue.Style
	Explode      bool
}

// SchemeType names a supported OpenAPI security scheme kind.
type SchemeType string

const (
	SchemeHTTPBasic               SchemeType = "http_basic"
	SchemeHTTPBearer              SchemeType = "http_bearer"
	SchemeAPIKeyQuery             SchemeType = "apikey_query"
	SchemeAPIKeyHeader            SchemeType = "apikey_header"
	SchemeAPIKeyCookie            SchemeType = "apikey_cookie"
	SchemeOAuth2ClientCredentials SchemeType = "oauth2_client_credentials"
)

// SecurityScheme is one entry of the document's components.securitySchemes.
type SecurityScheme struct {
	ID         string
	Type       SchemeType
	APIKeyName string
	TokenURL   string
	RefreshURL string
	Scopes     []string
}

// SecurityRequirement references one scheme plus the scopes an operation
// requests from it.
type SecurityRequirement struct {
	Scheme *SecurityScheme
	Scopes []string
}

// SecurityAlternatives is a disjunctive-normal-form requirement: the
// security check passes if ANY inner slice is fully satisfied. An empty
// slice means no authentication is required.
type SecurityAlternatives [][]SecurityRequirement

// Method is a single operationId's binding: HTTP method, path template,
// parameters and optional body/security overrides.
type Method struct {
	Path       string
	HTTPMethod string
	Parameters map[string]Parameter
	HasBody    bool
	Security   *SecurityAlternatives
}

// Spec is the parsed, immutable representation of an OpenAPI document.
type Spec struct {
	Servers         []uri.Components
	Methods         map[string]Method
	SecuritySchemes map[string]SecurityScheme
	DefaultSecurity SecurityAlternatives
	Content         string
}

// RequestPartWhole is the special Field value meaning "the whole
// zserio-serialized request object", used for GET-less body parts.
const RequestPartWhole = "*"

// ObjectContentType is the content type used for zserio-encoded bodies and
// demanded of every response via the Accept header.
const ObjectContentType = "application/x-zserio-object"

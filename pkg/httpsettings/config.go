// Package httpsettings loads a YAML-keyed-by-URL-pattern settings file and
// folds it together with a per-call ad-hoc configuration before a request
// goes out, the way a user's local ~/.afw http settings file overrides or
// fills in defaults for requests against matching hosts.
package httpsettings

import (
	"github.com/ndsev/zswag-sub000/pkg/secrets"
	"github.com/ndsev/zswag-sub000/pkg/transport"
)

// HTTPConfig is the resolved set of extra request adjustments: headers and
// query parameters to add, cookies to send, and optional basic-auth/proxy
// credentials.
type HTTPConfig struct {
	Headers map[string]string
	Query   map[string]string
	Cookies map[string]string

	BasicAuthUser                string
	BasicAuthPass                string
	BasicAuthPassKeychainService string

	ProxyHost string
	ProxyPort int
	ProxyUser string
	ProxyPass string

	APIKey string

	OAuth2 *OAuth2Config
}

// OAuth2Config carries the client-credentials a resource's OAuth2 security
// scheme needs, plus optional overrides for the scope list and token/
// refresh URLs the OpenAPI document declares.
type OAuth2Config struct {
	ClientID                    string
	ClientSecret                string
	ClientSecretKeychainService string
	Audience                    string
	ScopesOverride              []string
	TokenURLOverride            string
	RefreshURLOverride          string

	// TokenEndpointAuthMethod selects how the client authenticates to the
	// token endpoint: TokenEndpointAuthRfc6749ClientSecretBasic (the
	// default, HTTP Basic) or TokenEndpointAuthRfc5849Oauth1Signature (an
	// RFC 5849 HMAC-SHA256-signed Authorization header).
	TokenEndpointAuthMethod string
	// NonceLength is the OAuth1 nonce length (8-64); only meaningful for
	// TokenEndpointAuthRfc5849Oauth1Signature. Zero means the default.
	NonceLength int
}

const (
	TokenEndpointAuthRfc6749ClientSecretBasic = "rfc6749-client-secret-basic"
	TokenEndpointAuthRfc5849Oauth1Signature   = "rfc5849-oauth1-signature"
)

// Merge folds src into dst: a scalar field already set in dst is left
// alone, an unset one is filled from src. Map fields are accumulated,
// with dst's entries taking priority on key collisions.
func Merge(dst *HTTPConfig, src HTTPConfig) {
	dst.Headers = mergeMaps(dst.Headers, src.Headers)
	dst.Query = mergeMaps(dst.Query, src.Query)
	dst.Cookies = mergeMaps(dst.Cookies, src.Cookies)

	if dst.BasicAuthUser == "" {
		dst.BasicAuthUser = src.BasicAuthUser
	}
	if dst.BasicAuthPass == "" {
		dst.BasicAuthPass = src.BasicAuthPass
	}
	if dst.BasicAuthPassKeychainService == "" {
		dst.BasicAuthPassKeychainService = src.BasicAuthPassKeychainService
	}
	if dst.ProxyHost == "" {
		dst.ProxyHost = src.ProxyHost
		dst.ProxyPort = src.ProxyPort
		dst.ProxyUser = src.ProxyUser
		dst.ProxyPass = src.ProxyPass
	}
	if dst.APIKey == "" {
		dst.APIKey = src.APIKey
	}
	if dst.OAuth2 == nil {
		dst.OAuth2 = src.OAuth2
	}
}

func mergeMaps(dst, src map[string]string) map[string]string {
	if len(src) == 0 {
		return dst
	}
	out := make(map[string]string, len(dst)+len(src))
	for k, v := range src {
		out[k] = v
	}
	for k, v := range dst {
		out[k] = v
	}
	return out
}

// ResolveSecret materializes BasicAuthPass from the keychain if it was
// given only as a service name, leaving an already-literal password alone.
// It does the same for the OAuth2 client secret, if present.
func (c HTTPConfig) ResolveSecret(store *secrets.Store) HTTPConfig {
	if c.BasicAuthPass == "" && c.BasicAuthPassKeychainService != "" && store != nil {
		c.BasicAuthPass = store.Load(c.BasicAuthPassKeychainService, c.BasicAuthUser)
	}
	if c.OAuth2 != nil && c.OAuth2.ClientSecret == "" && c.OAuth2.ClientSecretKeychainService != "" && store != nil {
		oauth2 := *c.OAuth2
		oauth2.ClientSecret = store.Load(oauth2.ClientSecretKeychainService, oauth2.ClientID)
		c.OAuth2 = &oauth2
	}
	return c
}

// ApplyToRequest copies the resolved config's headers, query additions,
// cookies, basic-auth and proxy settings onto an outgoing request.
func (c HTTPConfig) ApplyToRequest(req *transport.Request) {
	if len(c.Headers) > 0 {
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		for k, v := range c.Headers {
			req.Headers[k] = v
		}
	}
	if len(c.Cookies) > 0 {
		if req.Cookies == nil {
			req.Cookies = map[string]string{}
		}
		for k, v := range c.Cookies {
			req.Cookies[k] = v
		}
	}
	if c.BasicAuthUser != "" {
		req.BasicAuthUser = c.BasicAuthUser
		req.BasicAuthPass = c.BasicAuthPass
	}
	if c.ProxyHost != "" {
		req.ProxyHost = c.ProxyHost
		req.ProxyPort = c.ProxyPort
		req.ProxyUser = c.ProxyUser
		req.ProxyPass = c.ProxyPass
	}
}

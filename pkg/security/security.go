// Package security resolves an operation's security requirements against a
// request's configured credentials, applying whichever OpenAPI security
// schemes are satisfiable and reporting a combined error when none are.
package security

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/httpsettings"
	"github.com/ndsev/zswag-sub000/pkg/oauth2cc"
	"github.com/ndsev/zswag-sub000/pkg/openapi"
)

// Context is the per-request state security handlers check and mutate.
// Config is the already ad-hoc/persistent-merged HTTP config that will be
// sent on the wire; handlers fill in whatever credentials they mint.
type Context struct {
	Config *httpsettings.HTTPConfig
}

// Handler decides whether a single security requirement is satisfied by
// ctx, mutating ctx.Config to add credentials if it can. It returns false
// and a human-readable reason if the requirement could not be satisfied.
type Handler interface {
	Satisfy(ctx context.Context, req openapi.SecurityRequirement, ac *Context) (bool, string)
}

// Registry dispatches security requirements to the handler registered for
// their scheme type.
type Registry struct {
	handlers map[openapi.SchemeType]Handler
}

// NewRegistry builds a Registry with the standard set of handlers. tokens
// may be nil if no operation in use requires OAuth2 client-credentials.
func NewRegistry(tokens *oauth2cc.TokenSource) *Registry {
	apiKey := apiKeyHandler{}
	return &Registry{handlers: map[openapi.SchemeType]Handler{
		openapi.SchemeHTTPBasic:               basicHandler{},
		openapi.SchemeHTTPBearer:              bearerHandler{},
		openapi.SchemeAPIKeyQuery:             apiKey,
		openapi.SchemeAPIKeyHeader:            apiKey,
		openapi.SchemeAPIKeyCookie:            apiKey,
		openapi.SchemeOAuth2ClientCredentials: &oauth2Handler{tokens: tokens},
	}}
}

// Satisfy checks whether any alternative of alts is fully satisfiable,
// applying the credentials of the first one that is. An empty alts means
// no authentication is required. Returns a *zerrors.Error of type
// ErrAuthUnsatisfied, listing the mismatch reason of every alternative,
// if none could be satisfied.
func (r *Registry) Satisfy(ctx context.Context, alts openapi.SecurityAlternatives, ac *Context) error {
	if len(alts) == 0 {
		return nil
	}

	var msg strings.Builder
	msg.WriteString("the provided HTTP configuration does not satisfy authentication requirements:\n")

	for i, schemeSet := range alts {
		matched := true
		for _, req := range schemeSet {
			handler, ok := r.handlers[req.Scheme.Type]
			var reason string
			if ok {
				var satisfied bool
				satisfied, reason = handler.Satisfy(ctx, req, ac)
				if satisfied {
					continue
				}
			} else {
				reason = fmt.Sprintf("no handler registered for required security scheme %s", req.Scheme.ID)
			}
			fmt.Fprintf(&msg, "  in security configuration %d: %s\n", i, reason)
			matched = false
			break
		}
		if matched {
			return nil
		}
	}

	return zerrors.NewAuthUnsatisfiedError(msg.String(), nil)
}

func ensureHeaders(c *httpsettings.HTTPConfig) map[string]string {
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	return c.Headers
}

func ensureQuery(c *httpsettings.HTTPConfig) map[string]string {
	if c.Query == nil {
		c.Query = map[string]string{}
	}
	return c.Query
}

func ensureCookies(c *httpsettings.HTTPConfig) map[string]string {
	if c.Cookies == nil {
		c.Cookies = map[string]string{}
	}
	return c.Cookies
}

var basicAuthHeaderRe = regexp.MustCompile(`(?i)^Basic .+$`)

type basicHandler struct{}

func (basicHandler) Satisfy(_ context.Context, _ openapi.SecurityRequirement, ac *Context) (bool, string) {
	if ac.Config.BasicAuthUser != "" {
		return true, ""
	}
	if basicAuthHeaderRe.MatchString(ac.Config.Headers["Authorization"]) {
		return true, ""
	}
	return false, "HTTP basic-auth credentials are missing."
}

var bearerAuthHeaderRe = regexp.MustCompile(`(?i)^Bearer .+$`)

type bearerHandler struct{}

func (bearerHandler) Satisfy(_ context.Context, _ openapi.SecurityRequirement, ac *Context) (bool, string) {
	if bearerAuthHeaderRe.MatchString(ac.Config.Headers["Authorization"]) {
		return true, ""
	}
	return false, "header `Authorization: Bearer ...` is missing."
}

type apiKeyHandler struct{}

func (apiKeyHandler) Satisfy(_ context.Context, req openapi.SecurityRequirement, ac *Context) (bool, string) {
	scheme := req.Scheme
	var container map[string]string
	var containerName string

	switch scheme.Type {
	case openapi.SchemeAPIKeyQuery:
		container, containerName = ensureQuery(ac.Config), "query"
	case openapi.SchemeAPIKeyHeader:
		container, containerName = ensureHeaders(ac.Config), "headers"
	case openapi.SchemeAPIKeyCookie:
		container, containerName = ensureCookies(ac.Config), "cookies"
	default:
		return false, "unsupported apiKey parameter location."
	}

	if _, ok := container[scheme.APIKeyName]; ok {
		return true, ""
	}
	if ac.Config.APIKey != "" {
		container[scheme.APIKeyName] = ac.Config.APIKey
		return true, ""
	}
	return false, fmt.Sprintf("API key (%s) missing: %s", containerName, scheme.APIKeyName)
}

type oauth2Handler struct {
	tokens *oauth2cc.TokenSource
}

func (h *oauth2Handler) Satisfy(ctx context.Context, req openapi.SecurityRequirement, ac *Context) (bool, string) {
	if ac.Config.OAuth2 == nil {
		return false, "OAuth2 client-credentials required but no oauth2 config present in http-settings."
	}
	if h.tokens == nil {
		return false, "OAuth2 client-credentials required but no token source is configured."
	}
	oauthConfig := ac.Config.OAuth2

	scopes := req.Scopes
	if len(oauthConfig.ScopesOverride) > 0 {
		scopes = oauthConfig.ScopesOverride
	}

	tokenURL := req.Scheme.TokenURL
	if oauthConfig.TokenURLOverride != "" {
		tokenURL = oauthConfig.TokenURLOverride
	}
	if tokenURL == "" {
		return false, "OAuth2 client-credentials: tokenUrl missing (spec/http-settings)."
	}

	refreshURL := req.Scheme.RefreshURL
	if oauthConfig.RefreshURLOverride != "" {
		refreshURL = oauthConfig.RefreshURLOverride
	}

	cc := oauth2cc.Credentials{
		ClientID:                    oauthConfig.ClientID,
		ClientSecret:                oauthConfig.ClientSecret,
		ClientSecretKeychainService: oauthConfig.ClientSecretKeychainService,
		Audience:                    oauthConfig.Audience,
		TokenEndpointAuthMethod:     oauthConfig.TokenEndpointAuthMethod,
		NonceLength:                 oauthConfig.NonceLength,
	}

	token, err := h.tokens.AccessToken(ctx, *ac.Config, tokenURL, refreshURL, cc, scopes)
	if err != nil {
		return false, err.Error()
	}

	ensureHeaders(ac.Config)["Authorization"] = "Bearer " + token
	return true, ""
}

// Package oauth2cc mints and caches OAuth2 client-credentials access tokens
// for the security handlers, keyed by token endpoint plus the credentials
// and scopes used against it, so that repeated calls against the same
// resource reuse a still-valid token instead of minting a fresh one. A
// stale cache entry carrying a refresh token is exchanged for a new access
// token before a fresh client-credentials mint is attempted.
package oauth2cc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"time"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/httpsettings"
	"github.com/ndsev/zswag-sub000/pkg/oauth1"
	"github.com/ndsev/zswag-sub000/pkg/secrets"
	"github.com/ndsev/zswag-sub000/pkg/transport"
)

// expirySlack is subtracted from a token's reported expires_in so a token
// is treated as stale slightly before the issuer actually invalidates it.
const expirySlack = 30 * time.Second

// defaultExpiresIn is used when a token response omits expires_in.
const defaultExpiresIn = 3600

// Credentials is the client-credentials grant's client identity.
type Credentials struct {
	ClientID                    string
	ClientSecret                string
	ClientSecretKeychainService string
	Audience                    string

	// TokenEndpointAuthMethod selects how a confidential client
	// authenticates to the token endpoint: empty or
	// httpsettings.TokenEndpointAuthRfc6749ClientSecretBasic for HTTP
	// Basic, or httpsettings.TokenEndpointAuthRfc5849Oauth1Signature for
	// an RFC 5849 HMAC-SHA256-signed Authorization header.
	TokenEndpointAuthMethod string
	// NonceLength is the OAuth1 nonce length; 0 uses oauth1.DefaultNonceLength.
	NonceLength int
}

type tokenKey struct {
	tokenURL string
	clientID string
	audience string
	scopeKey string
}

// joinScopes builds the cache key's scope component by joining scopes in
// the order they were requested, not a normalized order — two requests
// naming the same scopes in a different order are deliberately distinct
// cache entries.
func joinScopes(scopes []string) string {
	return strings.Join(scopes, ":")
}

type mintedToken struct {
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// TokenSource mints and caches access tokens per (tokenURL, clientID,
// audience, scopes) combination. A single instance is safe for concurrent
// use across many resource requests.
type TokenSource struct {
	transport transport.Client
	settings  *httpsettings.Settings
	secrets   *secrets.Store

	mu    sync.RWMutex
	cache map[tokenKey]mintedToken
}

// NewTokenSource builds a TokenSource that mints tokens over transportClient.
// settings supplies the persistent HTTP configuration (proxy, cookies, ...)
// for the token/refresh endpoint itself; secretStore resolves a client
// secret that was only given as a keychain reference. Either may be nil.
func NewTokenSource(transportClient transport.Client, settings *httpsettings.Settings, secretStore *secrets.Store) *TokenSource {
	return &TokenSource{
		transport: transportClient,
		settings:  settings,
		secrets:   secretStore,
		cache:     make(map[tokenKey]mintedToken),
	}
}

// AccessToken returns a valid bearer token for (tokenURL, cc, scopes),
// reusing a cached one, refreshing a stale one, or minting a fresh one as
// needed. resourceConfig is the HTTP configuration that would otherwise be
// sent to the protected resource; safe pieces of it (proxy, cookies) are
// reused against the token endpoint, with any resource Authorization
// header stripped first so resource credentials never reach the issuer.
func (t *TokenSource) AccessToken(
	ctx context.Context,
	resourceConfig httpsettings.HTTPConfig,
	tokenURL, refreshURL string,
	cc Credentials,
	scopes []string,
) (string, error) {
	if refreshURL == "" {
		refreshURL = tokenURL
	}
	key := tokenKey{tokenURL: tokenURL, clientID: cc.ClientID, audience: cc.Audience, scopeKey: joinScopes(scopes)}

	t.mu.RLock()
	if entry, ok := t.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		t.mu.RUnlock()
		return entry.accessToken, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Someone else may have refreshed or minted while we waited for the lock.
	if entry, ok := t.cache[key]; ok && time.Now().Before(entry.expiresAt) {
		return entry.accessToken, nil
	}

	if entry, ok := t.cache[key]; ok && entry.refreshToken != "" {
		refreshed, err := t.refreshToken(ctx, resourceConfig, refreshURL, cc, entry.refreshToken)
		if err == nil {
			t.cache[key] = refreshed
			return refreshed.accessToken, nil
		}
		// Fall through to a fresh mint.
	}

	minted, err := t.fetchToken(ctx, resourceConfig, tokenURL, cc, scopes)
	if err != nil {
		return "", err
	}
	t.cache[key] = minted
	return minted.accessToken, nil
}

// tokenEndpointConfig starts from the persistent settings for
// tokenOrRefreshURL, enriches it with the safe pieces of the resource
// request's own config (proxy, cookies, timeouts), then strips any
// resource Authorization header so it is never leaked to the issuer.
func (t *TokenSource) tokenEndpointConfig(resourceConfig httpsettings.HTTPConfig, tokenOrRefreshURL string) httpsettings.HTTPConfig {
	var conf httpsettings.HTTPConfig
	if t.settings != nil {
		conf = t.settings.Resolve(tokenOrRefreshURL)
	}
	httpsettings.Merge(&conf, resourceConfig)
	delete(conf.Headers, "Authorization")
	return conf
}

// applyClientAuth resolves the client secret (literal or keychain) and, if
// one is present, adds client authentication to conf — HTTP Basic by
// default, or an RFC 5849 HMAC-SHA256 Authorization header if cc selects
// that method. form holds the request body as it will be sent, so the
// OAuth1 signature can cover it. It returns the resolved secret so callers
// can tell a confidential client (non-empty secret, Authorization header
// set) from a public one (empty secret, the client id must travel in the
// request body instead).
func (t *TokenSource) applyClientAuth(conf *httpsettings.HTTPConfig, cc Credentials, method, endpoint string, form url.Values) (string, error) {
	secret := cc.ClientSecret
	if secret == "" && cc.ClientSecretKeychainService != "" && t.secrets != nil {
		secret = t.secrets.Load(cc.ClientSecretKeychainService, cc.ClientID)
	}
	if secret == "" {
		return "", nil
	}

	if conf.Headers == nil {
		conf.Headers = map[string]string{}
	}

	if cc.TokenEndpointAuthMethod == httpsettings.TokenEndpointAuthRfc5849Oauth1Signature {
		params := make(map[string]string, len(form))
		for k := range form {
			params[k] = form.Get(k)
		}
		header, err := oauth1.BuildAuthorizationHeader(method, endpoint, cc.ClientID, secret, params, cc.NonceLength)
		if err != nil {
			return "", err
		}
		conf.Headers["Authorization"] = header
		return secret, nil
	}

	cred := cc.ClientID + ":" + secret
	conf.Headers["Authorization"] = "Basic " + base64.StdEncoding.EncodeToString([]byte(cred))
	return secret, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    *int   `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

func (t *TokenSource) postForm(ctx context.Context, conf httpsettings.HTTPConfig, endpoint, body string) (transport.Response, error) {
	req := transport.Request{
		Method:  "POST",
		URL:     endpoint,
		Body:    []byte(body),
		Headers: map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	}
	conf.ApplyToRequest(&req)
	return t.transport.Do(ctx, req)
}

func parseTokenResponse(res transport.Response, missingTokenMessage string) (mintedToken, error) {
	if res.Status < 200 || res.Status >= 300 {
		return mintedToken{}, zerrors.NewAuthFetchFailedError(
			"OAuth2 token endpoint returned non-2xx status", nil)
	}

	var body tokenResponse
	_ = json.Unmarshal(res.Content, &body)
	if body.AccessToken == "" {
		return mintedToken{}, zerrors.NewMalformedTokenResponseError(missingTokenMessage, nil)
	}

	expiresIn := defaultExpiresIn
	if body.ExpiresIn != nil {
		expiresIn = *body.ExpiresIn
	}

	return mintedToken{
		accessToken:  body.AccessToken,
		refreshToken: body.RefreshToken,
		expiresAt:    time.Now().Add(time.Duration(expiresIn)*time.Second - expirySlack),
	}, nil
}

func (t *TokenSource) fetchToken(
	ctx context.Context,
	resourceConfig httpsettings.HTTPConfig,
	tokenURL string,
	cc Credentials,
	scopes []string,
) (mintedToken, error) {
	conf := t.tokenEndpointConfig(resourceConfig, tokenURL)

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}
	if cc.Audience != "" {
		form.Set("audience", cc.Audience)
	}

	secret, err := t.applyClientAuth(&conf, cc, "POST", tokenURL, form)
	if err != nil {
		return mintedToken{}, err
	}
	if secret == "" {
		// Public client: the id travels in the body instead of Basic auth.
		form.Set("client_id", cc.ClientID)
	}

	res, err := t.postForm(ctx, conf, tokenURL, form.Encode())
	if err != nil {
		return mintedToken{}, zerrors.NewTransportError("OAuth2 token request failed", err)
	}
	return parseTokenResponse(res, "OAuth2: access_token missing in response.")
}

func (t *TokenSource) refreshToken(
	ctx context.Context,
	resourceConfig httpsettings.HTTPConfig,
	refreshURL string,
	cc Credentials,
	refreshTok string,
) (mintedToken, error) {
	conf := t.tokenEndpointConfig(resourceConfig, refreshURL)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshTok)

	secret, err := t.applyClientAuth(&conf, cc, "POST", refreshURL, form)
	if err != nil {
		return mintedToken{}, err
	}
	if secret == "" {
		form.Set("client_id", cc.ClientID)
	}

	res, err := t.postForm(ctx, conf, refreshURL, form.Encode())
	if err != nil {
		return mintedToken{}, zerrors.NewTransportError("OAuth2 refresh request failed", err)
	}

	minted, err := parseTokenResponse(res, "OAuth2: access_token missing in refresh response.")
	if err != nil {
		return mintedToken{}, err
	}
	if minted.refreshToken == "" {
		// Some issuers don't reissue a refresh token; keep the old one.
		minted.refreshToken = refreshTok
	}
	return minted, nil
}

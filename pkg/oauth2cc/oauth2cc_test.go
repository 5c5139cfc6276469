package oauth2cc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/httpsettings"
	"github.com/ndsev/zswag-sub000/pkg/secrets"
	"github.com/ndsev/zswag-sub000/pkg/secrets/keyring"
	"github.com/ndsev/zswag-sub000/pkg/transport"
)

type fakeKeyringProvider struct {
	data map[string]string
}

func newFakeKeyringProvider() *fakeKeyringProvider {
	return &fakeKeyringProvider{data: map[string]string{}}
}

func (f *fakeKeyringProvider) Name() string      { return "fake" }
func (f *fakeKeyringProvider) IsAvailable() bool { return true }
func (f *fakeKeyringProvider) Set(service, key, value string) error {
	f.data[service+"/"+key] = value
	return nil
}
func (f *fakeKeyringProvider) Get(service, key string) (string, error) {
	v, ok := f.data[service+"/"+key]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (f *fakeKeyringProvider) Delete(service, key string) error { delete(f.data, service+"/"+key); return nil }
func (f *fakeKeyringProvider) DeleteAll(service string) error   { return nil }

func newClient() transport.Client {
	return transport.NewHTTPClient(5 * time.Second)
}

func tokenServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","token_type":"bearer","expires_in":3600}`, atomic.LoadInt32(hits))
	}))
}

func TestAccessToken_FetchesAndCaches(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{ClientID: "id", ClientSecret: "secret"}

	tok1, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, []string{"read"})
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok1)

	tok2, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, []string{"read"})
	require.NoError(t, err)
	assert.Equal(t, tok1, tok2)
	assert.EqualValues(t, 1, hits)
}

func TestAccessToken_DistinctScopesDistinctCacheEntries(t *testing.T) {
	var hits int32
	server := tokenServer(t, &hits)
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{ClientID: "id", ClientSecret: "secret"}

	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, []string{"read"})
	require.NoError(t, err)
	_, err = ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, []string{"write"})
	require.NoError(t, err)

	assert.EqualValues(t, 2, hits)
}

func TestAccessToken_EndpointFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", Credentials{ClientID: "id"}, nil)
	require.Error(t, err)
	assert.True(t, zerrors.IsAuthFetchFailed(err))
}

func TestAccessToken_MalformedResponseMissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token_type":"bearer","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", Credentials{ClientID: "id"}, nil)
	require.Error(t, err)
	assert.True(t, zerrors.IsMalformedTokenResponse(err))
}

// TestAccessToken_StaleCacheRefreshesInsteadOfReminting exercises the cold
// path's refresh-token exchange: a cache entry whose access token has
// expired but which still carries a refresh token must be renewed with a
// grant_type=refresh_token POST, never a fresh client_credentials mint.
func TestAccessToken_StaleCacheRefreshesInsteadOfReminting(t *testing.T) {
	var mints, refreshes int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.Form.Get("grant_type") {
		case "client_credentials":
			atomic.AddInt32(&mints, 1)
			fmt.Fprint(w, `{"access_token":"first","expires_in":1,"refresh_token":"refresh-tok"}`)
		case "refresh_token":
			atomic.AddInt32(&refreshes, 1)
			assert.Equal(t, "refresh-tok", r.Form.Get("refresh_token"))
			fmt.Fprint(w, `{"access_token":"refreshed","expires_in":3600}`)
		default:
			t.Fatalf("unexpected grant_type %q", r.Form.Get("grant_type"))
		}
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{ClientID: "id", ClientSecret: "secret"}

	tok1, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", tok1)

	time.Sleep(2 * time.Second)

	tok2, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, nil)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok2)

	assert.EqualValues(t, 1, mints)
	assert.EqualValues(t, 1, refreshes)
}

// TestAccessToken_RefreshURLOverride confirms the refresh exchange is sent
// to a distinct refreshURL, not back to tokenURL, when one is given.
func TestAccessToken_RefreshURLOverride(t *testing.T) {
	var mintHits, refreshHits int32
	mint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&mintHits, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"first","expires_in":1,"refresh_token":"refresh-tok"}`)
	}))
	defer mint.Close()
	refresh := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshHits, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"refreshed","expires_in":3600}`)
	}))
	defer refresh.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{ClientID: "id", ClientSecret: "secret"}

	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, mint.URL, refresh.URL, cc, nil)
	require.NoError(t, err)

	time.Sleep(2 * time.Second)

	tok, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, mint.URL, refresh.URL, cc, nil)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", tok)
	assert.EqualValues(t, 1, mintHits)
	assert.EqualValues(t, 1, refreshHits)
}

// TestAccessToken_PublicClientSendsIDInBody mirrors the no-secret public
// client wire shape: no Authorization header, client_id in the body.
func TestAccessToken_PublicClientSendsIDInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "", r.Header.Get("Authorization"))
		assert.Equal(t, "pub-id", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{ClientID: "pub-id"}

	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, nil)
	require.NoError(t, err)
}

// TestAccessToken_ConfidentialClientSendsBasicAuth mirrors the
// confidential client wire shape: HTTP Basic credentials, no client_id in
// the body.
func TestAccessToken_ConfidentialClientSendsBasicAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "conf-id", user)
		assert.Equal(t, "conf-secret", pass)
		assert.Equal(t, "", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{ClientID: "conf-id", ClientSecret: "conf-secret"}

	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, nil)
	require.NoError(t, err)
}

// TestAccessToken_ResolvesKeychainSecret confirms a ClientSecretKeychainService
// reference is resolved to a literal secret before minting, producing
// confidential-client wire behavior even though no literal secret was given.
func TestAccessToken_ResolvesKeychainSecret(t *testing.T) {
	provider := newFakeKeyringProvider()
	require.NoError(t, provider.Set("my-service", "conf-id", "vault-secret"))
	store := secrets.NewStoreWithProvider(provider)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "conf-id", user)
		assert.Equal(t, "vault-secret", pass)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, store)
	cc := Credentials{ClientID: "conf-id", ClientSecretKeychainService: "my-service"}

	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, nil)
	require.NoError(t, err)
}

// TestAccessToken_StripsResourceAuthorizationHeader confirms the resource
// request's own Authorization header never reaches the token endpoint.
func TestAccessToken_StripsResourceAuthorizationHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	resourceConfig := httpsettings.HTTPConfig{Headers: map[string]string{"Authorization": "Bearer resource-leaked"}}

	_, err := ts.AccessToken(context.Background(), resourceConfig, server.URL, "", Credentials{ClientID: "id"}, nil)
	require.NoError(t, err)
}

func TestAccessToken_ScopeBodyIsSpaceJoined(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "read write", r.Form.Get("scope"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", Credentials{ClientID: "id"}, []string{"read", "write"})
	require.NoError(t, err)
}

// TestAccessToken_OAuth1SignatureModeSignsInsteadOfBasic confirms a
// Credentials.TokenEndpointAuthMethod of rfc5849-oauth1-signature produces
// an "OAuth ..." Authorization header covering the request body, not HTTP
// Basic, for a confidential client.
func TestAccessToken_OAuth1SignatureModeSignsInsteadOfBasic(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "OAuth "))
		assert.Contains(t, auth, `oauth_consumer_key="oauth1-id"`)
		assert.Contains(t, auth, `oauth_signature_method="HMAC-SHA256"`)
		assert.Contains(t, auth, "oauth_signature=")
		assert.Equal(t, "", r.Form.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","expires_in":3600}`)
	}))
	defer server.Close()

	ts := NewTokenSource(newClient(), nil, nil)
	cc := Credentials{
		ClientID:                "oauth1-id",
		ClientSecret:            "oauth1-secret",
		TokenEndpointAuthMethod: httpsettings.TokenEndpointAuthRfc5849Oauth1Signature,
	}

	_, err := ts.AccessToken(context.Background(), httpsettings.HTTPConfig{}, server.URL, "", cc, nil)
	require.NoError(t, err)
}

func TestJoinScopes_PreservesRequestOrder(t *testing.T) {
	assert.Equal(t, "write:read", joinScopes([]string{"write", "read"}))
	assert.NotEqual(t, joinScopes([]string{"write", "read"}), joinScopes([]string{"read", "write"}))
}

package httpsettings

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ndsev/zswag-sub000/pkg/secrets"
	"github.com/ndsev/zswag-sub000/pkg/secrets/keyring"
	"github.com/ndsev/zswag-sub000/pkg/transport"
)

type fakeKeyringProvider struct {
	values map[string]string
}

func (p fakeKeyringProvider) Name() string      { return "fake" }
func (p fakeKeyringProvider) IsAvailable() bool { return true }
func (p fakeKeyringProvider) Set(service, user, value string) error {
	p.values[service+"/"+user] = value
	return nil
}
func (p fakeKeyringProvider) Get(service, user string) (string, error) {
	v, ok := p.values[service+"/"+user]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return v, nil
}
func (p fakeKeyringProvider) Delete(service, user string) error {
	delete(p.values, service+"/"+user)
	return nil
}
func (p fakeKeyringProvider) DeleteAll(service string) error { return nil }

func TestResolveSecret_LoadsFromKeychain(t *testing.T) {
	provider := fakeKeyringProvider{values: map[string]string{"my-service/alice": "hunter2"}}
	store := secrets.NewStoreWithProvider(provider)

	cfg := HTTPConfig{BasicAuthUser: "alice", BasicAuthPassKeychainService: "my-service"}
	resolved := cfg.ResolveSecret(store)

	assert.Equal(t, "hunter2", resolved.BasicAuthPass)
}

func TestResolveSecret_LiteralPasswordWins(t *testing.T) {
	cfg := HTTPConfig{BasicAuthUser: "alice", BasicAuthPass: "literal", BasicAuthPassKeychainService: "my-service"}
	resolved := cfg.ResolveSecret(nil)

	assert.Equal(t, "literal", resolved.BasicAuthPass)
}

func TestApplyToRequest_SetsFields(t *testing.T) {
	cfg := HTTPConfig{
		Headers:       map[string]string{"X-Trace": "1"},
		Cookies:       map[string]string{"session": "abc"},
		BasicAuthUser: "alice",
		BasicAuthPass: "secret",
		ProxyHost:     "proxy.example.com",
		ProxyPort:     3128,
	}
	req := &transport.Request{}
	cfg.ApplyToRequest(req)

	assert.Equal(t, "1", req.Headers["X-Trace"])
	assert.Equal(t, "abc", req.Cookies["session"])
	assert.Equal(t, "alice", req.BasicAuthUser)
	assert.Equal(t, "proxy.example.com", req.ProxyHost)
}

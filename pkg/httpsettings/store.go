package httpsettings

import (
	"io"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/oauth1"
)

// EnvSettingsFileVar is the environment variable naming the settings file
// to load, mirroring the original AFW_HTTP_SETTINGS_FILE convention.
const EnvSettingsFileVar = "AFW_HTTP_SETTINGS_FILE"

type entry struct {
	pattern *regexp.Regexp
	raw     string
	config  HTTPConfig
}

// Settings is a collection of URL-pattern-keyed HTTPConfig entries, safe
// for concurrent reads while a reload replaces the entry list.
type Settings struct {
	mu      sync.RWMutex
	entries []entry
}

type rawBasicAuth struct {
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	KeychainService string `yaml:"keychainService"`
}

type rawProxy struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type rawOAuth2 struct {
	ClientID                    string                `yaml:"clientId"`
	ClientSecret                string                `yaml:"clientSecret"`
	ClientSecretKeychainService string                `yaml:"clientSecretKeychainService"`
	Audience                    string                `yaml:"audience"`
	ScopesOverride              []string              `yaml:"scopesOverride"`
	TokenURLOverride            string                `yaml:"tokenUrlOverride"`
	RefreshURLOverride          string                `yaml:"refreshUrlOverride"`
	TokenEndpointAuth           *rawTokenEndpointAuth `yaml:"tokenEndpointAuth"`
}

type rawTokenEndpointAuth struct {
	Method      string `yaml:"method"`
	NonceLength int    `yaml:"nonceLength"`
}

type rawEntry struct {
	URL     string            `yaml:"url"`
	Cookies map[string]string `yaml:"cookies"`
	Headers map[string]string `yaml:"headers"`
	Query   map[string]string `yaml:"query"`
	Auth    *rawBasicAuth     `yaml:"auth"`
	Proxy   *rawProxy         `yaml:"proxy"`
	OAuth2  *rawOAuth2        `yaml:"oauth2"`
	APIKey  string            `yaml:"apiKey"`
}

// Load reads the settings file named by AFW_HTTP_SETTINGS_FILE. A missing
// env var or missing file yields an empty, valid Settings rather than an
// error, matching the original's tolerance for an absent settings file.
func Load() (*Settings, error) {
	path := os.Getenv(EnvSettingsFileVar)
	if path == "" {
		return &Settings{}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, zerrors.NewInternalError("failed to open HTTP settings file "+path, err)
	}
	defer f.Close()

	return LoadFromReader(f)
}

// LoadFromReader parses a settings document from r.
func LoadFromReader(r io.Reader) (*Settings, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, zerrors.NewInternalError("failed to read HTTP settings", err)
	}

	var raws []rawEntry
	if err := yaml.Unmarshal(data, &raws); err != nil {
		return nil, zerrors.NewInternalError("failed to parse HTTP settings", err)
	}

	s := &Settings{}
	for _, raw := range raws {
		if raw.URL == "" {
			return nil, zerrors.NewInternalError("HTTP settings entry missing required field 'url'", nil)
		}

		pattern, err := regexp.Compile(raw.URL)
		if err != nil {
			return nil, zerrors.NewInternalError("invalid URL pattern "+raw.URL, err)
		}

		cfg := HTTPConfig{
			Cookies: raw.Cookies,
			Headers: raw.Headers,
			Query:   raw.Query,
			APIKey:  raw.APIKey,
		}
		if raw.Auth != nil {
			cfg.BasicAuthUser = raw.Auth.User
			cfg.BasicAuthPass = raw.Auth.Password
			cfg.BasicAuthPassKeychainService = raw.Auth.KeychainService
		}
		if raw.Proxy != nil {
			cfg.ProxyHost = raw.Proxy.Host
			cfg.ProxyPort = raw.Proxy.Port
			cfg.ProxyUser = raw.Proxy.User
			cfg.ProxyPass = raw.Proxy.Password
		}
		if raw.OAuth2 != nil {
			cfg.OAuth2 = &OAuth2Config{
				ClientID:                    raw.OAuth2.ClientID,
				ClientSecret:                raw.OAuth2.ClientSecret,
				ClientSecretKeychainService: raw.OAuth2.ClientSecretKeychainService,
				Audience:                    raw.OAuth2.Audience,
				ScopesOverride:              raw.OAuth2.ScopesOverride,
				TokenURLOverride:            raw.OAuth2.TokenURLOverride,
				RefreshURLOverride:          raw.OAuth2.RefreshURLOverride,
				TokenEndpointAuthMethod:     TokenEndpointAuthRfc6749ClientSecretBasic,
				NonceLength:                 oauth1.DefaultNonceLength,
			}
			if raw.OAuth2.TokenEndpointAuth != nil {
				method := raw.OAuth2.TokenEndpointAuth.Method
				if method == "" {
					method = TokenEndpointAuthRfc6749ClientSecretBasic
				}
				if method != TokenEndpointAuthRfc6749ClientSecretBasic && method != TokenEndpointAuthRfc5849Oauth1Signature {
					return nil, zerrors.NewInternalError("unknown tokenEndpointAuth method: "+method, nil)
				}
				cfg.OAuth2.TokenEndpointAuthMethod = method

				nonceLength := raw.OAuth2.TokenEndpointAuth.NonceLength
				if nonceLength == 0 {
					nonceLength = oauth1.DefaultNonceLength
				}
				if nonceLength < 8 || nonceLength > 64 {
					return nil, zerrors.NewInternalError("nonceLength must be between 8 and 64", nil)
				}
				cfg.OAuth2.NonceLength = nonceLength
			}
		}

		s.entries = append(s.entries, entry{pattern: pattern, raw: raw.URL, config: cfg})
	}

	return s, nil
}

// Resolve folds together the configs of every entry whose pattern matches
// url, in declaration order, with earlier entries taking priority over
// later ones for scalar fields.
func (s *Settings) Resolve(url string) HTTPConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var merged HTTPConfig
	for _, e := range s.entries {
		if e.pattern.MatchString(url) {
			Merge(&merged, e.config)
		}
	}
	return merged
}

// Apply resolves the persistent settings matching url and folds adhoc on
// top, ad-hoc values filling in anything the persistent settings left
// unset.
func (s *Settings) Apply(url string, adhoc HTTPConfig) HTTPConfig {
	merged := s.Resolve(url)
	Merge(&merged, adhoc)
	return merged
}

// Store serializes the current entries back to YAML.
func (s *Settings) Store(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raws := make([]rawEntry, 0, len(s.entries))
	for _, e := range s.entries {
		raw := rawEntry{
			URL:     e.raw,
			Cookies: e.config.Cookies,
			Headers: e.config.Headers,
			Query:   e.config.Query,
			APIKey:  e.config.APIKey,
		}
		if e.config.BasicAuthUser != "" || e.config.BasicAuthPass != "" || e.config.BasicAuthPassKeychainService != "" {
			raw.Auth = &rawBasicAuth{
				User:            e.config.BasicAuthUser,
				Password:        e.config.BasicAuthPass,
				KeychainService: e.config.BasicAuthPassKeychainService,
			}
		}
		if e.config.ProxyHost != "" {
			raw.Proxy = &rawProxy{
				Host:     e.config.ProxyHost,
				Port:     e.config.ProxyPort,
				User:     e.config.ProxyUser,
				Password: e.config.ProxyPass,
			}
		}
		if e.config.OAuth2 != nil {
			raw.OAuth2 = &rawOAuth2{
				ClientID:                    e.config.OAuth2.ClientID,
				ClientSecret:                e.config.OAuth2.ClientSecret,
				ClientSecretKeychainService: e.config.OAuth2.ClientSecretKeychainService,
				Audience:                    e.config.OAuth2.Audience,
				ScopesOverride:              e.config.OAuth2.ScopesOverride,
				TokenURLOverride:            e.config.OAuth2.TokenURLOverride,
				RefreshURLOverride:          e.config.OAuth2.RefreshURLOverride,
				TokenEndpointAuth: &rawTokenEndpointAuth{
					Method:      e.config.OAuth2.TokenEndpointAuthMethod,
					NonceLength: e.config.OAuth2.NonceLength,
				},
			}
		}
		raws = append(raws, raw)
	}

	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(raws)
}

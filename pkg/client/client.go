// Package client ties the OpenAPI spec, parameter serialization, HTTP
// settings and security resolution together into a single Call operation:
// given a method name and a way to resolve its request parts, it builds
// and sends the HTTP request and returns the response body.
package client

import (
	"context"
	"fmt"
	"strings"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/httpsettings"
	"github.com/ndsev/zswag-sub000/pkg/logger"
	"github.com/ndsev/zswag-sub000/pkg/openapi"
	"github.com/ndsev/zswag-sub000/pkg/paramvalue"
	"github.com/ndsev/zswag-sub000/pkg/security"
	"github.com/ndsev/zswag-sub000/pkg/transport"
	"github.com/ndsev/zswag-sub000/pkg/uri"
)

// ParamResolver produces the wire-ready value of a single request part.
// ident is the OpenAPI parameter name, field is the zserio member path it
// was bound to (or openapi.RequestPartWhole for the request body).
type ParamResolver func(ident, field string) (paramvalue.Value, error)

// Client invokes operations of a single parsed OpenAPI document against
// one of its servers.
type Client struct {
	spec             *openapi.Spec
	server           uri.Components
	adhocConfig      httpsettings.HTTPConfig
	settings         *httpsettings.Settings
	securityRegistry *security.Registry
	transport        transport.Client
}

// New builds a Client bound to spec.Servers[serverIndex]. settings and
// securityRegistry may be nil, in which case an empty Settings and a
// Registry with no OAuth2 token source are used.
func New(
	spec *openapi.Spec,
	serverIndex int,
	transportClient transport.Client,
	settings *httpsettings.Settings,
	securityRegistry *security.Registry,
	adhocConfig httpsettings.HTTPConfig,
) (*Client, error) {
	if serverIndex < 0 || serverIndex >= len(spec.Servers) {
		return nil, zerrors.NewServerIndexOutOfRangeError(
			fmt.Sprintf("the server index %d is out of bounds (servers count=%d)", serverIndex, len(spec.Servers)), nil)
	}
	if settings == nil {
		settings = &httpsettings.Settings{}
	}
	if securityRegistry == nil {
		securityRegistry = security.NewRegistry(nil)
	}

	server := spec.Servers[serverIndex]
	logger.Get().Debug("instantiating client", "server", mustBuildHost(server))

	return &Client{
		spec:             spec,
		server:           server,
		adhocConfig:      adhocConfig,
		settings:         settings,
		securityRegistry: securityRegistry,
		transport:        transportClient,
	}, nil
}

func mustBuildHost(c uri.Components) string {
	host, err := c.BuildHost()
	if err != nil {
		return ""
	}
	return host
}

// Call invokes methodIdent, resolving its parameters and body (if any)
// through resolver, and returns the response body on a 200 status.
func (c *Client) Call(ctx context.Context, methodIdent string, resolver ParamResolver) (string, error) {
	method, ok := c.spec.Methods[methodIdent]
	if !ok {
		return "", zerrors.NewUnknownMethodError(
			fmt.Sprintf("the method %q is not part of the used OpenAPI specification", methodIdent), nil)
	}

	resolvedPath, err := resolveTemplate(method, resolver)
	if err != nil {
		return "", err
	}

	built := c.server
	built.AppendPath(resolvedPath)
	builtURI, err := built.Build()
	if err != nil {
		return "", err
	}

	debugContext := fmt.Sprintf("[%s %s]", method.HTTPMethod, method.Path)
	logger.Get().Debug(debugContext + " calling endpoint " + builtURI)

	cfg := c.settings.Apply(builtURI, c.adhocConfig)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	if cfg.Query == nil {
		cfg.Query = map[string]string{}
	}
	cfg.Headers["Accept"] = openapi.ObjectContentType

	if err := resolveHeaderAndQueryParameters(&cfg, method, resolver); err != nil {
		return "", err
	}

	alts := c.spec.DefaultSecurity
	if method.Security != nil {
		alts = *method.Security
	}
	if err := c.securityRegistry.Satisfy(ctx, alts, &security.Context{Config: &cfg}); err != nil {
		return "", err
	}

	finalURI := built
	for key, value := range cfg.Query {
		finalURI.AddQuery(key, value)
	}
	finalURL, err := finalURI.Build()
	if err != nil {
		return "", err
	}

	req := transport.Request{Method: method.HTTPMethod, URL: finalURL}
	cfg.ApplyToRequest(&req)

	if method.HasBody {
		bodyValue, err := resolver("", openapi.RequestPartWhole)
		if err != nil {
			return "", err
		}
		bodyStr, err := bodyValue.BodyStr()
		if err != nil {
			return "", err
		}
		req.Body = []byte(bodyStr)
		req.Headers["Content-Type"] = openapi.ObjectContentType
	}

	logger.Get().Debug(debugContext + " executing request")
	res, err := c.transport.Do(ctx, req)
	if err != nil {
		return "", zerrors.NewTransportError(debugContext+" request failed", err)
	}

	if res.Status != 200 {
		return "", zerrors.NewHTTPError(
			fmt.Sprintf("%s got HTTP status %d", debugContext, res.Status), nil)
	}

	return string(res.Content), nil
}

func resolveTemplate(method openapi.Method, resolver ParamResolver) (string, error) {
	var out strings.Builder
	path := method.Path
	pos := 0

	for {
		begin := strings.IndexByte(path[pos:], '{')
		if begin < 0 {
			out.WriteString(path[pos:])
			break
		}
		begin += pos

		end := strings.IndexByte(path[begin:], '}')
		if end < 0 {
			out.WriteString(path[pos:])
			break
		}
		end += begin

		out.WriteString(path[pos:begin])
		ident := path[begin+1 : end]

		param, ok := method.Parameters[ident]
		if !ok {
			return "", zerrors.NewParameterResolutionError(
				fmt.Sprintf("could not find path parameter for name %q (path: %q)", ident, method.Path), nil)
		}

		value, err := resolver(param.Ident, param.Field)
		if err != nil {
			return "", err
		}

		replacement, err := value.PathStr(paramvalue.Param{
			Ident:        param.Ident,
			Style:        param.Style,
			Explode:      param.Explode,
			DefaultValue: param.DefaultValue,
		})
		if err != nil {
			return "", err
		}

		out.WriteString(replacement)
		pos = end + 1
	}

	return out.String(), nil
}

func resolveHeaderAndQueryParameters(cfg *httpsettings.HTTPConfig, method openapi.Method, resolver ParamResolver) error {
	for _, param := range method.Parameters {
		if param.Location != openapi.LocationQuery && param.Location != openapi.LocationHeader {
			continue
		}

		value, err := resolver(param.Ident, param.Field)
		if err != nil {
			return err
		}

		pairs := value.QueryOrHeaderPairs(paramvalue.Param{
			Ident:        param.Ident,
			Style:        param.Style,
			Explode:      param.Explode,
			DefaultValue: param.DefaultValue,
		})

		destination := cfg.Query
		if param.Location == openapi.LocationHeader {
			destination = cfg.Headers
		}
		for _, pair := range pairs {
			destination[pair.Key] = pair.Value
		}
	}
	return nil
}

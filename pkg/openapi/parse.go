package openapi

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
	"github.com/ndsev/zswag-sub000/pkg/paramvalue"
	"github.com/ndsev/zswag-sub000/pkg/uri"
)

var supportedMethods = []string{"get", "post", "put", "patch", "delete"}

// ParseYAML parses an OpenAPI document's server, paths and security
// sections into a Spec.
func ParseYAML(data []byte) (*Spec, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, zerrors.NewSpecLoadError("failed to parse OpenAPI document", err)
	}

	spec := &Spec{
		Methods:         map[string]Method{},
		SecuritySchemes: map[string]SecurityScheme{},
		Content:         string(data),
	}

	if components, ok := doc["components"].(map[string]any); ok {
		if schemes, ok := components["securitySchemes"].(map[string]any); ok {
			names := sortedKeys(schemes)
			for _, name := range names {
				scheme, err := parseSecurityScheme(name, schemes[name])
				if err != nil {
					return nil, err
				}
				spec.SecuritySchemes[name] = scheme
			}
		}
	}

	if sec, ok := doc["security"]; ok {
		alts, err := parseSecurityRequirement(sec, spec.SecuritySchemes)
		if err != nil {
			return nil, err
		}
		spec.DefaultSecurity = alts
	}

	if servers, ok := doc["servers"].([]any); ok {
		for _, s := range servers {
			sm, ok := s.(map[string]any)
			if !ok {
				continue
			}
			urlStr, _ := sm["url"].(string)
			if urlStr == "" {
				continue
			}
			comp, err := parseServerURL(urlStr)
			if err != nil {
				return nil, err
			}
			spec.Servers = append(spec.Servers, comp)
		}
	}

	paths, ok := doc["paths"].(map[string]any)
	if !ok {
		return nil, zerrors.NewSpecLoadError("missing required node 'paths'", nil)
	}

	for _, p := range sortedKeys(paths) {
		pathNode, ok := paths[p].(map[string]any)
		if !ok {
			continue
		}
		if err := parsePathItem(p, pathNode, spec); err != nil {
			return nil, err
		}
	}

	return spec, nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseServerURL(urlStr string) (uri.Components, error) {
	if strings.HasPrefix(urlStr, "/") {
		return uri.ParsePath(urlStr)
	}
	return uri.ParseRfc3986(urlStr)
}

func parsePathItem(uriPath string, node map[string]any, spec *Spec) error {
	for _, method := range supportedMethods {
		raw, ok := node[method]
		if !ok {
			continue
		}
		mm, ok := raw.(map[string]any)
		if !ok {
			continue
		}

		opID, ok := mm["operationId"].(string)
		if !ok || opID == "" {
			return zerrors.NewSpecLoadError("missing required field 'operationId' at path "+uriPath, nil)
		}

		m := Method{
			Path:       uriPath,
			HTTPMethod: strings.ToUpper(method),
			Parameters: map[string]Parameter{},
		}

		if params, ok := mm["parameters"].([]any); ok {
			for _, pRaw := range params {
				pm, ok := pRaw.(map[string]any)
				if !ok {
					continue
				}
				param, ident, accepted, err := parseMethodParameter(pm)
				if err != nil {
					return err
				}
				if accepted {
					m.Parameters[ident] = param
				}
			}
		}

		if body, ok := mm["requestBody"].(map[string]any); ok {
			hasBody, err := parseMethodBody(body)
			if err != nil {
				return err
			}
			m.HasBody = hasBody
		}

		if secRaw, ok := mm["security"]; ok {
			alts, err := parseSecurityRequirement(secRaw, spec.SecuritySchemes)
			if err != nil {
				return err
			}
			m.Security = &alts
		}

		spec.Methods[opID] = m
	}

	return nil
}

func parseParameterLocation(s string) (ParamLocation, error) {
	switch s {
	case "query":
		return LocationQuery, nil
	case "path":
		return LocationPath, nil
	case "header":
		return LocationHeader, nil
	}
	return "", zerrors.NewSpecLoadError("unsupported parameter location: "+s, nil)
}

func parseParameterFormat(schema map[string]any) (paramvalue.Format, error) {
	formatAny, ok := schema["format"]
	if !ok {
		return paramvalue.FormatString, nil
	}
	formatStr, _ := formatAny.(string)
	switch formatStr {
	case "string", "":
		return paramvalue.FormatString, nil
	case "byte", "base64":
		return paramvalue.FormatBase64, nil
	case "base64url":
		return paramvalue.FormatBase64url, nil
	case "hex":
		return paramvalue.FormatHex, nil
	case "binary":
		return paramvalue.FormatBinary, nil
	}
	return "", zerrors.NewSpecLoadError("unsupported format: "+formatStr, nil)
}

func applyDefaultStyle(param *Parameter) {
	param.Style = paramvalue.StyleSimple
	param.Explode = false

	switch param.Location {
	case LocationQuery, LocationHeader:
		param.Style = paramvalue.StyleForm
		param.Explode = true
	case LocationPath:
		param.Style = paramvalue.StyleSimple
		param.Explode = false
	}
}

func parseStyleOverride(s string, current paramvalue.Style) paramvalue.Style {
	switch s {
	case "matrix":
		return paramvalue.StyleMatrix
	case "label":
		return paramvalue.StyleLabel
	case "form":
		return paramvalue.StyleForm
	case "simple":
		return paramvalue.StyleSimple
	}
	return current
}

// parseMethodParameter returns accepted=false (without error) for any
// parameter missing the x-zserio-request-part extension: such parameters
// are not bound to a request part and are silently skipped.
func parseMethodParameter(pm map[string]any) (Parameter, string, bool, error) {
	name, ok := pm["name"].(string)
	if !ok || name == "" {
		return Parameter{}, "", false, zerrors.NewSpecLoadError("missing required node 'name'", nil)
	}

	param := Parameter{Ident: name, Location: LocationQuery}

	if inAny, ok := pm["in"]; ok {
		inStr, _ := inAny.(string)
		loc, err := parseParameterLocation(inStr)
		if err != nil {
			return Parameter{}, name, false, err
		}
		param.Location = loc
	}

	field, ok := pm["x-zserio-request-part"].(string)
	if !ok {
		return Parameter{}, name, false, nil
	}
	param.Field = field

	if schema, ok := pm["schema"].(map[string]any); ok {
		format, err := parseParameterFormat(schema)
		if err != nil {
			return Parameter{}, name, false, err
		}
		param.Format = format
	} else {
		param.Format = paramvalue.FormatString
	}

	applyDefaultStyle(&param)

	if styleAny, ok := pm["style"]; ok {
		styleStr, _ := styleAny.(string)
		param.Style = parseStyleOverride(styleStr, param.Style)
	}

	if explodeAny, ok := pm["explode"]; ok {
		if b, ok := explodeAny.(bool); ok {
			param.Explode = b
		}
	}

	if defAny, ok := pm["default"]; ok {
		if s, ok := defAny.(string); ok {
			param.DefaultValue = s
		}
	}

	return param, name, true, nil
}

func parseMethodBody(body map[string]any) (bool, error) {
	contentAny, ok := body["content"]
	if !ok {
		return false, nil
	}
	content, ok := contentAny.(map[string]any)
	if !ok {
		return false, nil
	}
	for ct := range content {
		if ct != ObjectContentType {
			return false, zerrors.NewSpecLoadError("unsupported body content type: "+ct, nil)
		}
	}
	return true, nil
}

func parseSecurityScheme(name string, raw any) (SecurityScheme, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return SecurityScheme{}, zerrors.NewSpecLoadError("invalid securityScheme "+name, nil)
	}

	typ, _ := m["type"].(string)
	scheme := SecurityScheme{ID: name}

	switch typ {
	case "http":
		schemeName, _ := m["scheme"].(string)
		switch strings.ToLower(schemeName) {
		case "basic":
			scheme.Type = SchemeHTTPBasic
		case "bearer":
			scheme.Type = SchemeHTTPBearer
		default:
			return SecurityScheme{}, zerrors.NewSpecLoadError("unsupported http auth scheme: "+schemeName, nil)
		}
	case "apiKey":
		keyName, _ := m["name"].(string)
		in, _ := m["in"].(string)
		scheme.APIKeyName = keyName
		switch in {
		case "query":
			scheme.Type = SchemeAPIKeyQuery
		case "header":
			scheme.Type = SchemeAPIKeyHeader
		case "cookie":
			scheme.Type = SchemeAPIKeyCookie
		default:
			return SecurityScheme{}, zerrors.NewSpecLoadError("unsupported apiKey location: "+in, nil)
		}
	case "oauth2":
		scheme.Type = SchemeOAuth2ClientCredentials
		if flows, ok := m["flows"].(map[string]any); ok {
			if cc, ok := flows["clientCredentials"].(map[string]any); ok {
				tokenURL, _ := cc["tokenUrl"].(string)
				scheme.TokenURL = tokenURL
				refreshURL, _ := cc["refreshUrl"].(string)
				scheme.RefreshURL = refreshURL
				if scopes, ok := cc["scopes"].(map[string]any); ok {
					for _, s := range sortedKeys(scopes) {
						scheme.Scopes = append(scheme.Scopes, s)
					}
				}
			}
		}
	default:
		return SecurityScheme{}, zerrors.NewSpecLoadError("unsupported securityScheme type: "+typ, nil)
	}

	return scheme, nil
}

func parseSecurityRequirement(raw any, schemes map[string]SecurityScheme) (SecurityAlternatives, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, zerrors.NewSpecLoadError("invalid security requirement list", nil)
	}

	var alts SecurityAlternatives
	for _, altRaw := range list {
		altMap, ok := altRaw.(map[string]any)
		if !ok {
			continue
		}

		var reqs []SecurityRequirement
		for _, name := range sortedKeys(altMap) {
			scheme, ok := schemes[name]
			if !ok {
				return nil, zerrors.NewSpecLoadError("security requirement references unknown scheme: "+name, nil)
			}

			var scopes []string
			if scopeList, ok := altMap[name].([]any); ok {
				for _, s := range scopeList {
					if str, ok := s.(string); ok {
						scopes = append(scopes, str)
					}
				}
			}

			schemeCopy := scheme
			reqs = append(reqs, SecurityRequirement{Scheme: &schemeCopy, Scopes: scopes})
		}

		alts = append(alts, reqs)
	}

	return alts, nil
}

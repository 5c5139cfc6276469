// Package uri parses and builds RFC 3986 URIs the way the rest of this
// module expects: percent-encoding is applied with lowercase hex digits and
// parsing tolerates a handful of malformed inputs that a strict RFC 3986
// parser would reject. See the design notes for why.
package uri

import (
	"fmt"
	"sort"
	"strings"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
)

// QueryPair is a single query-string key/value pair, preserved in the order
// AddQuery was called for equal keys.
type QueryPair struct {
	Key   string
	Value string
}

// Components is a parsed or hand-built URI, broken into the pieces the
// invocation engine needs to resolve and re-serialize.
type Components struct {
	Scheme string
	Host   string
	Port   uint16
	Path   string
	Query  string
	Vars   []QueryPair
}

// ParseRfc3986 parses an absolute URI (scheme, authority, path, query).
func ParseRfc3986(raw string) (Components, error) {
	sc := &scanner{s: raw}
	var result Components
	var errMsg string

	scheme, ok := parseScheme(sc)
	if !ok {
		errMsg = "error parsing scheme"
	}
	result.Scheme = scheme

	host, port, ok := parseAuthority(sc)
	if !ok {
		errMsg = "error parsing authority"
	}
	result.Host = host
	result.Port = port

	path, ok := parsePath(sc)
	if !ok {
		errMsg = "error parsing path"
	}
	result.Path = path

	if sc.peek() == '?' {
		sc.pos++
		query, ok := parseQuery(sc)
		if !ok {
			errMsg = "error parsing query"
		}
		result.Query = query
	}

	if errMsg != "" {
		return Components{}, zerrors.NewURIParseError(
			fmt.Sprintf("%s of URI %q", errMsg, raw), nil)
	}

	return result, nil
}

// ParsePath parses a path-and-query string, such as an OpenAPI path
// template or a relative reference, without scheme or authority.
func ParsePath(pathAndQuery string) (Components, error) {
	sc := &scanner{s: pathAndQuery}
	var result Components

	path, ok := parsePath(sc)
	if !ok {
		return Components{}, zerrors.NewURIParseError(
			fmt.Sprintf("error parsing path from %q", pathAndQuery), nil)
	}
	result.Path = path

	if sc.peek() == '?' {
		sc.pos++
		query, ok := parseQuery(sc)
		if !ok {
			return Components{}, zerrors.NewURIParseError(
				fmt.Sprintf("error parsing query from %q", pathAndQuery), nil)
		}
		result.Query = query
	}

	return result, nil
}

// New builds Components from already-known pieces, appending path as its
// own segments (so it may contain '/' separators that get individually
// percent-encoded).
func New(scheme, host, path string, port uint16, query string) Components {
	c := Components{Scheme: scheme, Host: host, Port: port, Query: query}
	c.AppendPath(path)
	return c
}

// AppendPath splits part on '/' and appends each non-empty segment,
// percent-encoding each segment independently.
func (c *Components) AppendPath(part string) {
	begin := 0
	for {
		end := strings.IndexByte(part[begin:], '/')
		var segment string
		if end < 0 {
			segment = part[begin:]
		} else {
			segment = part[begin : begin+end]
		}

		if segment == "" {
			if end < 0 {
				break
			}
			begin += end + 1
			continue
		}

		if c.Path == "" || c.Path[len(c.Path)-1] != '/' {
			c.Path += "/"
		}
		c.Path += Encode(segment)

		if end < 0 {
			break
		}
		begin += end + 1
	}
}

// AddQuery appends a query parameter. Repeated keys are preserved in
// insertion order relative to each other, matching the build-time sort.
func (c *Components) AddQuery(key, value string) {
	c.Vars = append(c.Vars, QueryPair{Key: key, Value: value})
}

// Build renders the full absolute URI.
func (c Components) Build() (string, error) {
	host, err := c.BuildHost()
	if err != nil {
		return "", err
	}
	return host + c.BuildPath(), nil
}

// BuildHost renders "scheme://host[:port]".
func (c Components) BuildHost() (string, error) {
	if c.Scheme == "" {
		return "", zerrors.NewURIBuildError("missing scheme", nil)
	}
	if c.Host == "" {
		return "", zerrors.NewURIBuildError("missing host", nil)
	}
	if c.Port > 0 {
		return fmt.Sprintf("%s://%s:%d", c.Scheme, c.Host, c.Port), nil
	}
	return fmt.Sprintf("%s://%s", c.Scheme, c.Host), nil
}

// BuildPath renders "path?query" using a stable sort over query keys,
// mirroring the std::multimap ordering of the original implementation.
func (c Components) BuildPath() string {
	var q strings.Builder
	if c.Query != "" {
		q.WriteByte('?')
		q.WriteString(Encode(c.Query))
	}

	vars := make([]QueryPair, len(c.Vars))
	copy(vars, c.Vars)
	sort.SliceStable(vars, func(i, j int) bool { return vars[i].Key < vars[j].Key })

	for _, v := range vars {
		if q.Len() == 0 {
			q.WriteByte('?')
		} else {
			q.WriteByte('&')
		}
		q.WriteString(Encode(v.Key))
		q.WriteByte('=')
		q.WriteString(Encode(v.Value))
	}

	return c.Path + q.String()
}

const encodeAllowed = "0123456789" +
	"abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"-._~" +
	"!$&'()*+,;="

var allowedTable [256]bool

func init() {
	for i := 0; i < len(encodeAllowed); i++ {
		allowedTable[encodeAllowed[i]] = true
	}
}

// Encode percent-encodes every byte outside the unreserved+sub-delims
// charset, using lowercase hex digits. This deliberately does not match
// RFC 3986's recommendation of uppercase hex.
func Encode(s string) string {
	var needsEncoding bool
	for i := 0; i < len(s); i++ {
		if !allowedTable[s[i]] {
			needsEncoding = true
			break
		}
	}
	if !needsEncoding {
		return s
	}

	var buf strings.Builder
	buf.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if allowedTable[c] {
			buf.WriteByte(c)
		} else {
			fmt.Fprintf(&buf, "%%%02x", c)
		}
	}
	return buf.String()
}

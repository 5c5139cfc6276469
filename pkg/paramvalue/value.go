package paramvalue

import (
	"sort"
	"strings"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
)

// Style names an RFC 6570 serialization style used to place a parameter
// value into a path segment, query string or header value.
type Style string

const (
	StyleSimple Style = "simple"
	StyleLabel  Style = "label"
	StyleMatrix Style = "matrix"
	StyleForm   Style = "form"
)

// Param carries just the style-resolution inputs a Value needs; it is a
// subset of the OpenAPI parameter definition.
type Param struct {
	Ident        string
	Style        Style
	Explode      bool
	DefaultValue string
}

type kind int

const (
	kindScalar kind = iota
	kindArray
	kindObject
)

// Value is the already-formatted (string-valued) representation of a
// request part, ready to be placed according to a parameter's style.
type Value struct {
	kind   kind
	scalar string
	array  []string
	object map[string]string
}

// Scalar wraps a single formatted value.
func Scalar(v string) Value { return Value{kind: kindScalar, scalar: v} }

// Array wraps a list of formatted values.
func Array(v []string) Value { return Value{kind: kindArray, array: v} }

// Object wraps a map of formatted values, whose keys are iterated in sorted
// order wherever ordering matters.
func Object(v map[string]string) Value { return Value{kind: kindObject, object: v} }

func (v Value) sortedObjectKeys() []string {
	keys := make([]string, 0, len(v.object))
	for k := range v.object {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinMap(m map[string]string, keys []string, kvSep, pairSep string) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+kvSep+m[k])
	}
	return strings.Join(parts, pairSep)
}

// BodyStr returns the value as a plain request body string. Only scalar
// values may be used as a body.
func (v Value) BodyStr() (string, error) {
	if v.kind != kindScalar {
		return "", zerrors.NewParameterResolutionError(
			"expected parameter value of type string for body, got a composite value", nil)
	}
	return v.scalar, nil
}

// PathStr renders the value as a path segment per param.Style (Simple,
// Label or Matrix).
func (v Value) PathStr(param Param) (string, error) {
	switch v.kind {
	case kindScalar:
		switch param.Style {
		case StyleSimple:
			return v.scalar, nil
		case StyleLabel:
			return "." + v.scalar, nil
		case StyleMatrix:
			return ";" + param.Ident + "=" + v.scalar, nil
		}
	case kindArray:
		switch param.Style {
		case StyleSimple:
			return strings.Join(v.array, ","), nil
		case StyleLabel:
			if param.Explode {
				return "." + strings.Join(v.array, "."), nil
			}
			return "." + strings.Join(v.array, ","), nil
		case StyleMatrix:
			if param.Explode {
				return ";" + param.Ident + "=" + strings.Join(v.array, ";"+param.Ident+"="), nil
			}
			return ";" + param.Ident + "=" + strings.Join(v.array, ","), nil
		}
	case kindObject:
		keys := v.sortedObjectKeys()
		switch param.Style {
		case StyleSimple:
			if param.Explode {
				return joinMap(v.object, keys, "=", ","), nil
			}
			return joinMap(v.object, keys, ",", ","), nil
		case StyleLabel:
			if param.Explode {
				return "." + joinMap(v.object, keys, "=", "."), nil
			}
			return "." + joinMap(v.object, keys, ",", ","), nil
		case StyleMatrix:
			if param.Explode {
				return ";" + joinMap(v.object, keys, "=", ";"), nil
			}
			return ";" + param.Ident + "=" + joinMap(v.object, keys, ",", ","), nil
		}
	}

	return param.DefaultValue, nil
}

// Pair is a single key/value result of QueryOrHeaderPairs.
type Pair struct {
	Key   string
	Value string
}

// QueryOrHeaderPairs renders the value as zero or more key/value pairs for
// Form style, the only style valid for query and header locations.
func (v Value) QueryOrHeaderPairs(param Param) []Pair {
	switch v.kind {
	case kindScalar:
		if param.Style == StyleForm {
			return []Pair{{Key: param.Ident, Value: v.scalar}}
		}
	case kindArray:
		if param.Style == StyleForm {
			if param.Explode {
				pairs := make([]Pair, 0, len(v.array))
				for _, item := range v.array {
					pairs = append(pairs, Pair{Key: param.Ident, Value: item})
				}
				return pairs
			}
			return []Pair{{Key: param.Ident, Value: strings.Join(v.array, ",")}}
		}
	case kindObject:
		if param.Style == StyleForm {
			keys := v.sortedObjectKeys()
			if param.Explode {
				pairs := make([]Pair, 0, len(keys))
				for _, k := range keys {
					pairs = append(pairs, Pair{Key: k, Value: v.object[k]})
				}
				return pairs
			}
			return []Pair{{Key: param.Ident, Value: joinMap(v.object, keys, ",", ",")}}
		}
	}

	return nil
}

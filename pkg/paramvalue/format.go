// Package paramvalue formats typed request-part values into wire strings
// and serializes them into path segments or query/header pairs according
// to the RFC 6570 subset of OpenAPI parameter styles.
package paramvalue

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
)

// Format names the wire encoding used to turn a scalar value into a string,
// independent of where that string then gets placed (path/query/header).
type Format string

const (
	FormatString    Format = "string"
	FormatHex       Format = "hex"
	FormatBase64    Format = "base64"
	FormatBase64url Format = "base64url"
	FormatBinary    Format = "binary"
)

func formatBuffer(f Format, buf []byte) string {
	switch f {
	case FormatHex:
		return hex.EncodeToString(buf)
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(buf)
	case FormatBase64url:
		return base64.URLEncoding.EncodeToString(buf)
	case FormatBinary, FormatString:
		return string(buf)
	default:
		return ""
	}
}

// FormatInt formats a signed integer. Hex formatting renders a leading '-'
// for negative values followed by the hex digits of the absolute value,
// rather than two's complement.
func FormatInt(f Format, v int64) string {
	switch f {
	case FormatHex:
		if v < 0 {
			return "-" + strconv.FormatUint(uint64(-v), 16)
		}
		return strconv.FormatUint(uint64(v), 16)
	case FormatString:
		return strconv.FormatInt(v, 10)
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v))
		return formatBuffer(f, buf)
	}
}

// FormatUint formats an unsigned integer.
func FormatUint(f Format, v uint64) string {
	switch f {
	case FormatHex:
		return strconv.FormatUint(v, 16)
	case FormatString:
		return strconv.FormatUint(v, 10)
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, v)
		return formatBuffer(f, buf)
	}
}

// FormatFloat formats a floating point value.
func FormatFloat(f Format, v float64) string {
	switch f {
	case FormatString:
		return strconv.FormatFloat(v, 'g', -1, 64)
	default:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		return formatBuffer(f, buf)
	}
}

// FormatText formats a string value. String and Binary formats pass the
// value through unchanged; the other formats re-encode its bytes.
func FormatText(f Format, v string) string {
	switch f {
	case FormatString, FormatBinary:
		return v
	default:
		return formatBuffer(f, []byte(v))
	}
}

// FormatBytes formats a raw byte buffer, e.g. a zserio-serialized request
// part passed as the whole-body value.
func FormatBytes(f Format, v []byte) string {
	return formatBuffer(f, v)
}

// Any formats a value of one of the supported scalar kinds, matching the
// dynamic dispatch a scripting-language caller would need.
func Any(f Format, v any) (string, error) {
	switch value := v.(type) {
	case int64:
		return FormatInt(f, value), nil
	case int:
		return FormatInt(f, int64(value)), nil
	case uint64:
		return FormatUint(f, value), nil
	case float64:
		return FormatFloat(f, value), nil
	case string:
		return FormatText(f, value), nil
	case []byte:
		return FormatBytes(f, value), nil
	default:
		return "", zerrors.NewParameterResolutionError(
			fmt.Sprintf("unsupported value type %T", v), nil)
	}
}

// Package oauth1 signs a request's token-endpoint call with the RFC 5849
// HMAC-SHA256 signature method, for issuers that authenticate the client
// via an OAuth 1.0-style Authorization header instead of HTTP Basic.
package oauth1

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	zerrors "github.com/ndsev/zswag-sub000/pkg/errors"
)

const nonceAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// DefaultNonceLength is used when a caller doesn't specify one.
const DefaultNonceLength = 16

// GenerateNonce returns a cryptographically random alphanumeric nonce of
// the given length, which must be between 8 and 64 characters.
func GenerateNonce(length int) (string, error) {
	if length < 8 || length > 64 {
		return "", zerrors.NewInvalidArgumentError("nonce length must be between 8 and 64", nil)
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", zerrors.NewInternalError("failed to generate OAuth1 nonce", err)
	}
	out := make([]byte, length)
	for i, b := range raw {
		out[i] = nonceAlphabet[int(b)%len(nonceAlphabet)]
	}
	return string(out), nil
}

// Timestamp returns the current Unix time as a decimal string.
func Timestamp() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// percentEncode applies RFC 3986 unreserved-character encoding: A-Z, a-z,
// 0-9, -, ., _ and ~ pass through; everything else is escaped as %XX with
// uppercase hex digits, per RFC 5849 §3.6.
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '.' || c == '_' || c == '~'
}

// buildSignatureBaseString assembles the RFC 5849 §3.4.1 signature base
// string: the HTTP method, the request URL and the sorted, percent-encoded
// parameter string, joined with '&'.
func buildSignatureBaseString(method, rawURL string, params map[string]string) string {
	pairs := make([]string, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, percentEncode(k)+"="+percentEncode(v))
	}
	sort.Strings(pairs)

	var b strings.Builder
	b.WriteString(method)
	b.WriteByte('&')
	b.WriteString(percentEncode(rawURL))
	b.WriteByte('&')
	b.WriteString(percentEncode(strings.Join(pairs, "&")))
	return b.String()
}

// ComputeSignature returns the base64-encoded HMAC-SHA256 signature of
// method/rawURL/params, signed with consumerSecret&tokenSecret per RFC
// 5849 §3.4.2. tokenSecret is empty for the client-credentials grant,
// which has no resource-owner token.
func ComputeSignature(method, rawURL string, params map[string]string, consumerSecret, tokenSecret string) string {
	base := buildSignatureBaseString(method, rawURL, params)
	signingKey := percentEncode(consumerSecret) + "&" + percentEncode(tokenSecret)

	mac := hmac.New(sha256.New, []byte(signingKey))
	mac.Write([]byte(base))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BuildAuthorizationHeader signs method/rawURL/bodyParams with HMAC-SHA256
// and returns a complete "OAuth ..." Authorization header value. bodyParams
// participate in the signature but are not themselves repeated in the
// header. nonceLength of 0 uses DefaultNonceLength.
func BuildAuthorizationHeader(method, rawURL, consumerKey, consumerSecret string, bodyParams map[string]string, nonceLength int) (string, error) {
	if nonceLength == 0 {
		nonceLength = DefaultNonceLength
	}
	nonce, err := GenerateNonce(nonceLength)
	if err != nil {
		return "", err
	}
	timestamp := Timestamp()

	allParams := make(map[string]string, len(bodyParams)+5)
	for k, v := range bodyParams {
		allParams[k] = v
	}
	allParams["oauth_consumer_key"] = consumerKey
	allParams["oauth_signature_method"] = "HMAC-SHA256"
	allParams["oauth_timestamp"] = timestamp
	allParams["oauth_nonce"] = nonce
	allParams["oauth_version"] = "1.0"

	signature := ComputeSignature(method, rawURL, allParams, consumerSecret, "")

	var b strings.Builder
	b.WriteString("OAuth ")
	fmt.Fprintf(&b, `oauth_consumer_key="%s", `, percentEncode(consumerKey))
	b.WriteString(`oauth_signature_method="HMAC-SHA256", `)
	fmt.Fprintf(&b, `oauth_timestamp="%s", `, timestamp)
	fmt.Fprintf(&b, `oauth_nonce="%s", `, percentEncode(nonce))
	b.WriteString(`oauth_version="1.0", `)
	fmt.Fprintf(&b, `oauth_signature="%s"`, percentEncode(signature))
	return b.String(), nil
}

// Package vnpay implements the VNPay redirect payment protocol: parameter
// canonicalization, HMAC-SHA512 signing, payment URL construction, callback
// verification and the querydr transaction lookup.
package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"sort"
	"strings"
)

const (
	FieldSecureHash     = "vnp_SecureHash"
	FieldSecureHashType = "vnp_SecureHashType"
)

// Params is a flat provider parameter set with decoded values.
type Params map[string]string

type encodedPair struct {
	key   string
	value string
}

// Canonicalize returns the signing string for params: keys and values are
// percent-encoded, pairs are ordered by the encoded key, and joined with '&'.
// The result is already encoded and must not be escaped again.
func Canonicalize(params Params) string {
	pairs := encodePairs(params)
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(p.value)
	}
	return b.String()
}

func encodePairs(params Params) []encodedPair {
	pairs := make([]encodedPair, 0, len(params))
	for k, v := range params {
		pairs = append(pairs, encodedPair{
			key:   encodeComponent(k),
			value: strings.ReplaceAll(encodeComponent(v), "%20", "+"),
		})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })
	return pairs
}

// Sign computes the lowercase hex HMAC-SHA512 of the canonical form of params.
func Sign(params Params, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(Canonicalize(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature over params, excluding the signature fields
// if they are present, and compares it with the provided one.
func Verify(params Params, signature, secret string) bool {
	if signature == "" {
		return false
	}
	expected := Sign(withoutSignature(params), secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func withoutSignature(params Params) Params {
	out := make(Params, len(params))
	for k, v := range params {
		if k == FieldSecureHash || k == FieldSecureHashType {
			continue
		}
		out[k] = v
	}
	return out
}

const upperhex = "0123456789ABCDEF"

// encodeComponent escapes everything outside the unreserved set
// A-Z a-z 0-9 - _ . ! ~ * ' ( ), byte by byte over the UTF-8 form.
func encodeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperhex[c>>4])
		b.WriteByte(upperhex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

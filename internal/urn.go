package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"regexp"
)

// RefreshTokenSize is the identifier width of a refresh credential: 128
// bytes of cryptographically secure randomness.
const RefreshTokenSize = 128

// ErrMalformedRefreshURN is returned when a supplied credential string does
// not match the refresh URN grammar. It is raised before any storage access.
var ErrMalformedRefreshURN = errors.New("malformed refresh urn")

// NewRefreshTokenID draws a fresh 128-byte credential identifier.
func NewRefreshTokenID() ([]byte, error) {
	id := make([]byte, RefreshTokenSize)
	if _, err := rand.Read(id); err != nil {
		return nil, err
	}
	return id, nil
}

// URNCodec encodes and decodes refresh credentials in their external form,
// urn:refresh:<namespace>:<base64 standard alphabet, padded, at most 200
// characters>. The grammar is validated with a single anchored expression so
// malformed input is rejected without decoding work.
type URNCodec struct {
	prefix  string
	pattern *regexp.Regexp
}

// NewURNCodec builds a codec for the given namespace. The namespace is
// assumed to already satisfy the platform name grammar (validated at config
// time) and is quoted defensively anyway.
func NewURNCodec(namespace string) *URNCodec {
	return &URNCodec{
		prefix:  "urn:refresh:" + namespace + ":",
		pattern: regexp.MustCompile(`^urn:refresh:` + regexp.QuoteMeta(namespace) + `:([a-zA-Z0-9+/]{0,200}={0,3})$`),
	}
}

// Encode wraps a raw identifier into its external URN form.
func (c *URNCodec) Encode(id []byte) string {
	return c.prefix + base64.StdEncoding.EncodeToString(id)
}

// Decode validates the grammar and returns the raw identifier bytes.
func (c *URNCodec) Decode(s string) ([]byte, error) {
	m := c.pattern.FindStringSubmatch(s)
	if m == nil {
		return nil, ErrMalformedRefreshURN
	}
	id, err := base64.StdEncoding.DecodeString(m[1])
	if err != nil {
		return nil, ErrMalformedRefreshURN
	}
	return id, nil
}

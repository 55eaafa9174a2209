package jwt

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Algorithm identifies the deployment signing algorithm.
type Algorithm string

const (
	// AlgEd25519 signs with an Ed25519 private key (EdDSA header).
	AlgEd25519 Algorithm = "ed25519"
	// AlgHS256 signs with a shared HMAC secret.
	AlgHS256 Algorithm = "hs256"
)

const minHMACSecretBytes = 32

// Config carries the immutable signing setup for a [Manager].
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	Algorithm Algorithm
	// Key is the signing key material supplied by the process key
	// provider: PKCS#8 PEM, raw seed, or raw private key for ed25519; the
	// shared secret for hs256.
	Key       []byte
	Issuer    string
	Audience  string
	AccessTTL time.Duration
}

// SessionClaims is the exact claim set of a minted session token.
type SessionClaims struct {
	UID string `json:"uid"`
	P   string `json:"p"`
	jwt.RegisteredClaims
}

// Manager mints session tokens. Instances are immutable and safe for
// concurrent use.
type Manager struct {
	config Config

	method  jwt.SigningMethod
	signKey any
	verify  any
}

// NewManager validates the configuration, parses the key material once, and
// returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Issuer == "" || cfg.Audience == "" {
		return nil, errors.New("issuer and audience are required")
	}

	m := &Manager{config: cfg}

	switch cfg.Algorithm {
	case AlgHS256:
		if len(cfg.Key) < minHMACSecretBytes {
			return nil, errors.New("hs256 requires a secret of at least 32 bytes")
		}
		m.method = jwt.SigningMethodHS256
		m.signKey = cfg.Key
		m.verify = cfg.Key
	case AlgEd25519:
		priv, err := parseEdPrivateKey(cfg.Key)
		if err != nil {
			return nil, err
		}
		m.method = jwt.SigningMethodEdDSA
		m.signKey = priv
		m.verify = priv.Public()
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return m, nil
}

// EncodeUID renders a user identifier the way session claims and wire
// responses carry it: standard base64 of the canonical 16-byte form.
func EncodeUID(id uuid.UUID) string {
	return base64.StdEncoding.EncodeToString(id[:])
}

// DecodeUID reverses [EncodeUID].
func DecodeUID(s string) (uuid.UUID, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.FromBytes(raw)
}

// EncodeMask renders a permission mask as base64 of its 8-byte big-endian
// encoding.
func EncodeMask(mask uint64) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], mask)
	return base64.StdEncoding.EncodeToString(buf[:])
}

// DecodeMask reverses [EncodeMask].
func DecodeMask(s string) (uint64, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, errors.New("invalid mask length")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// CreateSession mints a signed session token for the user with the given
// effective permission mask, valid from now until now+AccessTTL.
func (m *Manager) CreateSession(uid uuid.UUID, mask uint64, now time.Time) (string, error) {
	claims := SessionClaims{
		UID: EncodeUID(uid),
		P:   EncodeMask(mask),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.config.Issuer,
			Audience:  jwt.ClaimStrings{m.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.AccessTTL)),
		},
	}

	token := jwt.NewWithClaims(m.method, claims)
	signed, err := token.SignedString(m.signKey)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// ParseSession verifies signature, issuer, audience, and expiry, and returns
// the claim set.
func (m *Manager) ParseSession(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if t.Method.Alg() != m.method.Alg() {
				return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
			}
			return m.verify, nil
		},
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithAudience(m.config.Audience),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// parseEdPrivateKey accepts PKCS#8 PEM, raw PKCS#8 DER, a 32-byte seed, or a
// 64-byte private key.
func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == 0 {
		return nil, errors.New("ed25519 requires private key material")
	}

	der := key
	if block, _ := pem.Decode(key); block != nil {
		der = block.Bytes
	}

	if parsed, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		priv, ok := parsed.(ed25519.PrivateKey)
		if !ok {
			return nil, errors.New("PKCS#8 key is not ed25519")
		}
		return priv, nil
	}

	switch len(key) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(key), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(key), nil
	}

	return nil, errors.New("unrecognized ed25519 key material")
}

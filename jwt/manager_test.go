package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newEdConfig(t *testing.T) Config {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return Config{
		Algorithm: AlgEd25519,
		Key:       priv.Seed(),
		Issuer:    "urn:stocktrack",
		Audience:  "urn:stocktrack:be",
		AccessTTL: time.Hour,
	}
}

func TestCreateSessionClaims(t *testing.T) {
	m, err := NewManager(newEdConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	uid := uuid.New()
	const mask = uint64(0b101)
	now := time.Now().Truncate(time.Second)

	token, err := m.CreateSession(uid, mask, now)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	claims, err := m.ParseSession(token)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}

	gotUID, err := DecodeUID(claims.UID)
	if err != nil {
		t.Fatalf("DecodeUID failed: %v", err)
	}
	if gotUID != uid {
		t.Fatalf("uid mismatch: got %s want %s", gotUID, uid)
	}

	gotMask, err := DecodeMask(claims.P)
	if err != nil {
		t.Fatalf("DecodeMask failed: %v", err)
	}
	if gotMask != mask {
		t.Fatalf("mask mismatch: got %b want %b", gotMask, mask)
	}

	if claims.Issuer != "urn:stocktrack" {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "urn:stocktrack:be" {
		t.Fatalf("unexpected audience %v", claims.Audience)
	}
	if !claims.IssuedAt.Time.Equal(now) {
		t.Fatalf("unexpected iat %v", claims.IssuedAt)
	}
	if !claims.ExpiresAt.Time.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected exp %v", claims.ExpiresAt)
	}
}

func TestParseRejectsExpiredSession(t *testing.T) {
	m, err := NewManager(newEdConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := m.CreateSession(uuid.New(), 1, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := m.ParseSession(token); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	a, err := NewManager(newEdConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	b, err := NewManager(newEdConfig(t))
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	token, err := a.CreateSession(uuid.New(), 1, time.Now())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := b.ParseSession(token); err == nil {
		t.Fatal("expected foreign signature to be rejected")
	}
}

func TestNewManagerAcceptsPKCS8PEM(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	cfg := newEdConfig(t)
	cfg.Key = pemBytes
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed for PKCS#8 PEM: %v", err)
	}
	if _, err := m.CreateSession(uuid.New(), 0, time.Now()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
}

func TestNewManagerHS256(t *testing.T) {
	cfg := Config{
		Algorithm: AlgHS256,
		Key:       []byte("0123456789abcdef0123456789abcdef"),
		Issuer:    "urn:stocktrack",
		Audience:  "urn:stocktrack:be",
		AccessTTL: time.Hour,
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	token, err := m.CreateSession(uuid.New(), 42, time.Now())
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if _, err := m.ParseSession(token); err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
}

func TestNewManagerRejectsShortHMACSecret(t *testing.T) {
	cfg := Config{
		Algorithm: AlgHS256,
		Key:       []byte("short"),
		Issuer:    "urn:stocktrack",
		Audience:  "urn:stocktrack:be",
		AccessTTL: time.Hour,
	}
	if _, err := NewManager(cfg); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}

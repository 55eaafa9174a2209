package identity

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	internalaudit "github.com/stocktrack/identity/internal/audit"
)

// UserRecord is the account record consumed by the engine. The engine never
// creates or deletes users; it reads them, replaces password hashes through
// [Engine.SetPassword], and performs best-effort LastLoginAt updates.
type UserRecord struct {
	UserID            uuid.UUID
	Username          string
	PasswordHash      string // argon2id PHC string; empty means no credential on record
	PasswordChangedAt time.Time
	LastLoginAt       time.Time

	// LoginDisabled is nil when the account may log in. A non-nil value
	// disables login; a non-empty value carries the operator-supplied
	// reason, which is untrusted free text.
	LoginDisabled *string

	Roles []uuid.UUID
}

// RoleRecord is one node of the role-inheritance graph. The graph is managed
// by an external administrative collaborator and is read-only here. It is
// not guaranteed acyclic; traversal must bound itself.
type RoleRecord struct {
	RoleID      uuid.UUID
	Name        string
	Permissions uint64
	Inherit     []uuid.UUID
}

// RefreshRecord is one stored refresh credential: 128 bytes of random
// identifier, the owning user, and the issue instant. A record is destroyed
// atomically on successful redemption or by passive expiry at the retention
// horizon.
type RefreshRecord struct {
	TokenID  []byte
	UserID   uuid.UUID
	IssuedAt time.Time
}

// Grant is the result of a successful login or refresh: the caller-facing
// user identifier, a signed session token, and a fresh single-use refresh
// credential in urn:refresh form.
type Grant struct {
	UID     string
	Token   string
	Refresh string
}

// AccountStore is the persistence contract the engine consumes. Lookup
// methods return (nil, nil) when no record matches; errors are reserved for
// storage faults.
//
// ConsumeRefreshToken is the single concurrency-critical operation: it must
// atomically find-and-delete the record matching (tokenID, userID) whose age
// is at least minAge, returning nil when no record matches. Concurrent calls
// racing on the same tokenID must admit at most one winner, even across
// process instances sharing the store.
type AccountStore interface {
	FindUserByUsername(ctx context.Context, username string) (*UserRecord, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*UserRecord, error)
	RolesByIDs(ctx context.Context, ids []uuid.UUID) ([]RoleRecord, error)
	InsertRefreshToken(ctx context.Context, rec RefreshRecord) error
	ConsumeRefreshToken(ctx context.Context, tokenID []byte, userID uuid.UUID, minAge time.Duration) (*RefreshRecord, error)
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string, changedAt *time.Time) (bool, error)
}

// KeyProvider supplies the deployment secrets: the password pepper and the
// session signing key. Implementations load once at process start and stay
// immutable for the process lifetime.
type KeyProvider interface {
	// Pepper returns the deployment-wide secret mixed into password
	// hashing. It is never stored alongside the hashes.
	Pepper() []byte
	// SigningKey returns the signing key material: a PKCS#8 PEM block or
	// raw seed for ed25519, or the shared secret for hs256.
	SigningKey() []byte
	// Algorithm returns the fixed deployment algorithm identifier,
	// "ed25519" or "hs256".
	Algorithm() string
}

// StaticKeys is a [KeyProvider] over in-memory key material.
type StaticKeys struct {
	PepperBytes []byte
	Key         []byte
	Alg         string
}

// Pepper implements [KeyProvider].
func (s StaticKeys) Pepper() []byte { return s.PepperBytes }

// SigningKey implements [KeyProvider].
func (s StaticKeys) SigningKey() []byte { return s.Key }

// Algorithm implements [KeyProvider].
func (s StaticKeys) Algorithm() string { return s.Alg }

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

package identity

import (
	"errors"
	"regexp"
	"time"
)

// Config defines the engine configuration. Instances are intended to be
// configured during initialization and then treated as immutable.
type Config struct {
	// Namespace is the URN namespace embedded in token issuer/audience
	// claims and the refresh credential grammar
	// (urn:refresh:<Namespace>:<base64>).
	Namespace string

	JWT      JWTConfig
	Password PasswordConfig
	Refresh  RefreshConfig
	Timing   TimingConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls signed-session minting. The signing algorithm itself is
// supplied by the [KeyProvider], fixed per deployment.
type JWTConfig struct {
	AccessTTL time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries the argon2id cost parameters and the hard input
// cap applied before any hashing work.
type PasswordConfig struct {
	Memory      uint32 // in KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	// MaxLength is the hard byte cap on supplied passwords. Oversized
	// input is rejected before the hashing engine ever runs.
	MaxLength int
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig controls the refresh credential lifecycle.
type RefreshConfig struct {
	// MaturationWindow is the minimum age before a credential becomes
	// redeemable. The 2-minute default reproduces observed upstream
	// behavior; the constraint is unexplained there and is preserved
	// pending product clarification.
	MaturationWindow time.Duration

	// RetentionHorizon is the maximum lifetime of an unredeemed
	// credential. Enforcement is passive: the store expires the record.
	RetentionHorizon time.Duration
}

/*
====================================
TIMING CONFIG
====================================
*/

// TimingConfig shapes the artificial delays that blur the latency gap
// between the user-absent and wrong-password login paths.
type TimingConfig struct {
	// VerifyJitterMax bounds the randomized delay added to every login
	// attempt after lookup.
	VerifyJitterMax time.Duration

	// AbsentUserDelay is the additional fixed delay on the absent-user
	// (or absent-hash) path, making it cost at least as much wall time as
	// a real verification.
	AbsentUserDelay time.Duration
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

const (
	defaultNamespace  = "stocktrack"
	maxUsernameLength = 32
)

// usernamePattern is the exact account-name grammar: a lowercase letter
// followed by 2 to 31 lowercase letters, digits, underscores, or periods.
var usernamePattern = regexp.MustCompile(`^[a-z][a-z0-9_.]{2,31}$`)

func defaultConfig() Config {
	return Config{
		Namespace: defaultNamespace,
		JWT: JWTConfig{
			AccessTTL: time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MaxLength:   2048,
		},
		Refresh: RefreshConfig{
			MaturationWindow: 2 * time.Minute,
			RetentionHorizon: 24 * time.Hour,
		},
		Timing: TimingConfig{
			VerifyJitterMax: 250 * time.Millisecond,
			AbsentUserDelay: 100 * time.Millisecond,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// namespaceOK matches the role-name grammar the platform already imposes,
// which is also safe inside a URN segment.
var namespaceOK = regexp.MustCompile(`^[a-z][a-z0-9_\-]+$`)

// Validate checks the configuration for internally inconsistent or unsafe
// values. It is called by [Builder.Build].
func (c Config) Validate() error {
	if c.Namespace == "" || !namespaceOK.MatchString(c.Namespace) {
		return errors.New("namespace must match ^[a-z][a-z0-9_-]+$")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be positive")
	}
	if c.Password.MaxLength <= 0 {
		return errors.New("password MaxLength must be positive")
	}
	if c.Refresh.MaturationWindow < 0 {
		return errors.New("refresh MaturationWindow must not be negative")
	}
	if c.Refresh.RetentionHorizon <= 0 {
		return errors.New("refresh RetentionHorizon must be positive")
	}
	if c.Refresh.MaturationWindow >= c.Refresh.RetentionHorizon {
		return errors.New("refresh MaturationWindow must be below RetentionHorizon")
	}
	if c.Timing.VerifyJitterMax < 0 || c.Timing.AbsentUserDelay < 0 {
		return errors.New("timing delays must not be negative")
	}
	return nil
}

func cloneConfig(c Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return c
}

package identity

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stocktrack/identity/jwt"
)

func TestLoginSuccess(t *testing.T) {
	store := newMockStore()
	alice := seedAlice(t, store)
	engine := newTestEngine(t, store, fastConfig())

	grant, err := engine.Login(context.Background(), "alice", "CorrectHorse1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if grant.UID != jwt.EncodeUID(alice.UserID) {
		t.Errorf("UID = %q, want %q", grant.UID, jwt.EncodeUID(alice.UserID))
	}
	if !strings.HasPrefix(grant.Refresh, "urn:refresh:stocktrack:") {
		t.Errorf("Refresh = %q, want urn:refresh:stocktrack: prefix", grant.Refresh)
	}

	manager, err := jwt.NewManager(jwt.Config{
		Algorithm: "hs256",
		Key:       bytes.Repeat([]byte{0x17}, 32),
		Issuer:    "urn:stocktrack",
		Audience:  "urn:stocktrack:be",
		AccessTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	claims, err := manager.ParseSession(grant.Token)
	if err != nil {
		t.Fatalf("ParseSession failed: %v", err)
	}
	if claims.UID != grant.UID {
		t.Errorf("claims.UID = %q, want %q", claims.UID, grant.UID)
	}
	mask, err := jwt.DecodeMask(claims.P)
	if err != nil {
		t.Fatalf("DecodeMask failed: %v", err)
	}
	if mask != 0b101 {
		t.Errorf("mask = %b, want 101 (viewer union inherited base)", mask)
	}
}

func TestLoginSuccessUpdatesLastLogin(t *testing.T) {
	store := newMockStore()
	alice := seedAlice(t, store)
	engine := newTestEngine(t, store, fastConfig())

	before := time.Now()
	if _, err := engine.Login(context.Background(), "alice", "CorrectHorse1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	stored := store.usersByID[alice.UserID]
	if stored.LastLoginAt.Before(before) {
		t.Errorf("LastLoginAt = %v, want at or after %v", stored.LastLoginAt, before)
	}
}

func TestLoginValidationOrder(t *testing.T) {
	store := newMockStore()
	seedAlice(t, store)
	engine := newTestEngine(t, store, fastConfig())
	ctx := context.Background()

	cases := []struct {
		name     string
		username string
		pass     string
		message  string
	}{
		{"empty username", "", "x", "Missing username"},
		{"uppercase", "Alice", "x", "Invalid username"},
		{"too short", "ab", "x", "Invalid username"},
		{"leading digit", "1alice", "x", "Invalid username"},
		{"bad rune", "ali ce", "x", "Invalid username"},
		{"too long", strings.Repeat("a", 33), "x", "Invalid username"},
		{"empty password", "alice", "", "Missing password"},
		{"oversized password", "alice", strings.Repeat("p", 2049), "Password is too long"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Login(ctx, tc.username, tc.pass)
			var tagged *Error
			if !errors.As(err, &tagged) {
				t.Fatalf("err = %v, want *Error", err)
			}
			if tagged.Kind != KindValidation || tagged.Message != tc.message {
				t.Errorf("got (%d, %q), want (KindValidation, %q)", tagged.Kind, tagged.Message, tc.message)
			}
		})
	}
}

func TestLoginValidationBeforeStoreAccess(t *testing.T) {
	store := newMockStore()
	store.findErr = errors.New("store must not be touched")
	engine := newTestEngine(t, store, fastConfig())

	// Malformed input is rejected without a lookup; the injected fault
	// must never surface.
	_, err := engine.Login(context.Background(), "Alice", "whatever")
	var tagged *Error
	if !errors.As(err, &tagged) || tagged.Kind != KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestLoginWrongPasswordAndUnknownUserIndistinguishable(t *testing.T) {
	store := newMockStore()
	seedAlice(t, store)
	engine := newTestEngine(t, store, fastConfig())
	ctx := context.Background()

	_, wrongErr := engine.Login(ctx, "alice", "wrong-password")
	_, unknownErr := engine.Login(ctx, "nobodyhere", "wrong-password")

	if !errors.Is(wrongErr, ErrInvalidCredentials) {
		t.Fatalf("wrong-password err = %v", wrongErr)
	}
	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown-user err = %v", unknownErr)
	}
	if wrongErr.Error() != unknownErr.Error() {
		t.Errorf("messages differ: %q vs %q", wrongErr.Error(), unknownErr.Error())
	}
}

func TestLoginAbsentHashTreatedAsInvalidCredentials(t *testing.T) {
	store := newMockStore()
	store.putUser(UserRecord{UserID: uuid.New(), Username: "nohash"})
	engine := newTestEngine(t, store, fastConfig())

	_, err := engine.Login(context.Background(), "nohash", "anything")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginAbsentUserDelayApplied(t *testing.T) {
	store := newMockStore()
	seedAlice(t, store)
	cfg := fastConfig()
	cfg.Timing.AbsentUserDelay = 30 * time.Millisecond
	engine := newTestEngine(t, store, cfg)

	start := time.Now()
	_, err := engine.Login(context.Background(), "nobodyhere", "whatever")
	elapsed := time.Since(start)

	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}
	if elapsed < 30*time.Millisecond {
		t.Errorf("absent-user path returned in %v, want at least 30ms", elapsed)
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	store := newMockStore()
	reason := "payment overdue"
	empty := ""
	store.putUser(UserRecord{
		UserID:        uuid.New(),
		Username:      "withreason",
		PasswordHash:  testHash(t, "Secret12345"),
		LoginDisabled: &reason,
	})
	store.putUser(UserRecord{
		UserID:        uuid.New(),
		Username:      "noreason",
		PasswordHash:  testHash(t, "Secret12345"),
		LoginDisabled: &empty,
	})
	engine := newTestEngine(t, store, fastConfig())
	ctx := context.Background()

	_, err := engine.Login(ctx, "withreason", "Secret12345")
	var tagged *Error
	if !errors.As(err, &tagged) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if tagged.Message != "Your account is disabled: payment overdue" {
		t.Errorf("message = %q", tagged.Message)
	}

	_, err = engine.Login(ctx, "noreason", "Secret12345")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("err = %v, want ErrAccountDisabled", err)
	}
}

func TestLoginDisabledGateAfterPasswordCheck(t *testing.T) {
	store := newMockStore()
	reason := "suspended"
	store.putUser(UserRecord{
		UserID:        uuid.New(),
		Username:      "disableduser",
		PasswordHash:  testHash(t, "Secret12345"),
		LoginDisabled: &reason,
	})
	engine := newTestEngine(t, store, fastConfig())

	// Wrong password against a disabled account must not reveal the
	// disabled status.
	_, err := engine.Login(context.Background(), "disableduser", "wrongpassword")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginStoreFault(t *testing.T) {
	store := newMockStore()
	store.findErr = errors.New("connection reset")
	engine := newTestEngine(t, store, fastConfig())

	_, err := engine.Login(context.Background(), "alice", "CorrectHorse1")
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
	// The storage detail stays out of the boundary message.
	var tagged *Error
	if errors.As(err, &tagged) && tagged.Message != "Internal error" {
		t.Errorf("message = %q, want Internal error", tagged.Message)
	}
}

func TestLoginPermissionResolveFaultFailsClosed(t *testing.T) {
	store := newMockStore()
	seedAlice(t, store)
	store.rolesErr = errors.New("role fetch failed")
	engine := newTestEngine(t, store, fastConfig())

	_, err := engine.Login(context.Background(), "alice", "CorrectHorse1")
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
}

func TestLoginLastLoginFailureIsBestEffort(t *testing.T) {
	store := newMockStore()
	seedAlice(t, store)
	store.lastLoginErr = errors.New("write timeout")
	engine := newTestEngine(t, store, fastConfig())

	grant, err := engine.Login(context.Background(), "alice", "CorrectHorse1")
	if err != nil {
		t.Fatalf("Login failed despite best-effort last-login: %v", err)
	}
	if grant == nil || grant.Token == "" {
		t.Fatal("expected a full grant")
	}
	if store.lastLoginCalls != 1 {
		t.Errorf("lastLoginCalls = %d, want 1", store.lastLoginCalls)
	}
}

func TestLoginMetrics(t *testing.T) {
	store := newMockStore()
	seedAlice(t, store)
	cfg := fastConfig()
	cfg.Metrics.Enabled = true
	engine := newTestEngine(t, store, cfg)
	ctx := context.Background()

	if _, err := engine.Login(ctx, "alice", "CorrectHorse1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v", err)
	}

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Errorf("login_success = %d, want 1", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Errorf("login_failure = %d, want 1", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricSessionIssued] != 1 {
		t.Errorf("session_issued = %d, want 1", snap.Counters[MetricSessionIssued])
	}
}

func TestLoginAuditEvents(t *testing.T) {
	store := newMockStore()
	alice := seedAlice(t, store)
	cfg := fastConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 16

	sink := NewChannelSink(16)
	engine, err := New().
		WithConfig(cfg).
		WithStore(store).
		WithKeyProvider(StaticKeys{
			PepperBytes: testPepper,
			Key:         bytes.Repeat([]byte{0x17}, 32),
			Alg:         "hs256",
		}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if _, err := engine.Login(context.Background(), "alice", "CorrectHorse1"); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	engine.Close()

	var got *AuditEvent
	for {
		select {
		case ev := <-sink.Events():
			if ev.EventType == "login_success" {
				copied := ev
				got = &copied
			}
			continue
		default:
		}
		break
	}
	if got == nil {
		t.Fatal("no login_success audit event emitted")
	}
	if got.UserID != alice.UserID.String() || got.Username != "alice" || !got.Success {
		t.Errorf("event = %+v", got)
	}
}

package identity

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"
)

// Login verifies a username/password pair and, on success, issues a signed
// session plus a fresh single-use refresh credential.
//
// The unknown-username and wrong-password paths produce the identical
// [ErrInvalidCredentials] result, and every attempt absorbs a randomized
// delay so the two paths' latency distributions overlap. The account status
// gate runs strictly after password verification: probing disabled status
// costs an attacker a correct password.
func (e *Engine) Login(ctx context.Context, username, pass string) (*Grant, error) {
	if e == nil || e.hasher == nil {
		return nil, internalError(errNotReady)
	}

	if username == "" {
		return nil, validationError("Missing username")
	}
	if !usernamePattern.MatchString(username) {
		return nil, validationError("Invalid username")
	}
	if pass == "" {
		return nil, validationError("Missing password")
	}
	if len(pass) > e.config.Password.MaxLength {
		return nil, validationError("Password is too long")
	}

	user, err := e.store.FindUserByUsername(ctx, username)
	if err != nil {
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventInternalFault, false, "", username, internalError(err), func() map[string]string {
			return map[string]string{"op": "find_user", "detail": err.Error()}
		})
		return nil, internalError(err)
	}

	// Fuzz the timing before concluding, whichever way this attempt goes.
	e.verifyJitter(ctx)

	if user == nil || user.PasswordHash == "" {
		// Make the absent-user path cost at least as much wall time as a
		// real verification attempt.
		e.sleepFor(ctx, e.config.Timing.AbsentUserDelay)
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", username, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "user_not_found"}
		})
		return nil, ErrInvalidCredentials
	}

	ok, verr := e.hasher.Verify(pass, user.PasswordHash)
	if verr != nil {
		// Hashing engine fault: internal error, never a credential failure.
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventInternalFault, false, user.UserID.String(), username, internalError(verr), func() map[string]string {
			return map[string]string{"op": "password_verify", "detail": verr.Error()}
		})
		return nil, internalError(verr)
	}
	if !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID.String(), username, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "password_mismatch"}
		})
		return nil, ErrInvalidCredentials
	}

	if gateErr := checkEligible(user); gateErr != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.UserID.String(), username, gateErr, func() map[string]string {
			return map[string]string{"reason": "login_disabled"}
		})
		return nil, gateErr
	}

	grant, err := e.grant(ctx, user)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID.String(), username, nil, nil)
	return grant, nil
}

// checkEligible is the post-authentication login-eligibility gate. A nil
// LoginDisabled means eligible; an empty string disables with the generic
// message; a non-empty string embeds the operator-supplied reason verbatim.
func checkEligible(user *UserRecord) *Error {
	if user.LoginDisabled == nil {
		return nil
	}
	return disabledError(*user.LoginDisabled)
}

// verifyJitter sleeps a random duration in [0, VerifyJitterMax) to blur the
// timing gap between the user-absent and wrong-password paths.
func (e *Engine) verifyJitter(ctx context.Context) {
	max := e.config.Timing.VerifyJitterMax
	if max <= 0 {
		return
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		// Degrade to the full delay rather than none.
		e.sleepFor(ctx, max)
		return
	}
	e.sleepFor(ctx, time.Duration(n.Int64()))
}

// sleepFor blocks the current request (only) for d. The engine never spawns
// worker goroutines; delays suspend the calling goroutine alone.
func (e *Engine) sleepFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

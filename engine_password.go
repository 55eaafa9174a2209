package identity

import (
	"context"
	"errors"
	"time"

	"github.com/stocktrack/identity/jwt"
)

// SetPassword replaces a user's stored credential with a fresh secret-keyed
// hash of the supplied password. It is the administrative password path: no
// old-password check, no session invalidation, no authorization-sensitive
// computation beyond the hashing itself.
//
// When touchChangedAt is true, PasswordChangedAt is advanced alongside the
// hash; migration tooling sets it false to preserve historical timestamps.
func (e *Engine) SetPassword(ctx context.Context, uid, pass string, touchChangedAt bool) error {
	if e == nil || e.hasher == nil {
		return internalError(errNotReady)
	}

	if uid == "" {
		return validationError("Missing uid")
	}
	userID, err := jwt.DecodeUID(uid)
	if err != nil {
		return validationError("Invalid uid")
	}

	if pass == "" {
		return validationError("Cannot set an empty password")
	}
	if len(pass) > e.config.Password.MaxLength {
		return validationError("Password is too long")
	}

	hash, err := e.hasher.Hash(pass)
	if err != nil {
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventPasswordSetFailure, false, userID.String(), "", internalError(err), func() map[string]string {
			return map[string]string{"op": "password_hash", "detail": err.Error()}
		})
		return internalError(err)
	}

	var changedAt *time.Time
	if touchChangedAt {
		now := time.Now()
		changedAt = &now
	}

	found, err := e.store.UpdatePasswordHash(ctx, userID, hash, changedAt)
	if err != nil {
		if errors.Is(err, ErrWriteNotAcknowledged) {
			e.emitAudit(ctx, auditEventPasswordSetFailure, false, userID.String(), "", ErrWriteNotAcknowledged, nil)
			return ErrWriteNotAcknowledged
		}
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventPasswordSetFailure, false, userID.String(), "", internalError(err), func() map[string]string {
			return map[string]string{"op": "password_write", "detail": err.Error()}
		})
		return internalError(err)
	}
	if !found {
		return ErrUserNotFound
	}

	e.metricInc(MetricPasswordSet)
	e.emitAudit(ctx, auditEventPasswordSetSuccess, true, userID.String(), "", nil, nil)
	return nil
}

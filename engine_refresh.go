package identity

import (
	"context"

	"github.com/stocktrack/identity/jwt"
)

// Refresh redeems a single-use refresh credential and issues a fresh grant.
//
// The supplied string is validated against the urn:refresh grammar before
// any storage access. Redemption is one atomic conditional find-and-delete
// at the store: identifier match, owner match, and age at least the
// maturation window. Concurrent attempts racing on the same credential are
// serialized by that store operation — exactly one wins; every losing cause
// (never issued, already consumed, too young, expired, wrong owner)
// collapses into the same [ErrInvalidRefresh].
func (e *Engine) Refresh(ctx context.Context, refreshToken, uid string) (*Grant, error) {
	if e == nil || e.urn == nil {
		return nil, internalError(errNotReady)
	}

	if refreshToken == "" {
		return nil, validationError("Missing refreshToken")
	}
	tokenID, err := e.urn.Decode(refreshToken)
	if err != nil {
		return nil, validationError("Invalid refreshToken")
	}

	if uid == "" {
		return nil, validationError("Missing uid")
	}
	userID, err := jwt.DecodeUID(uid)
	if err != nil {
		return nil, validationError("Invalid uid")
	}

	rec, err := e.store.ConsumeRefreshToken(ctx, tokenID, userID, e.config.Refresh.MaturationWindow)
	if err != nil {
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventInternalFault, false, userID.String(), "", internalError(err), func() map[string]string {
			return map[string]string{"op": "consume_refresh", "detail": err.Error()}
		})
		return nil, internalError(err)
	}
	if rec == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID.String(), "", ErrInvalidRefresh, nil)
		return nil, ErrInvalidRefresh
	}

	user, err := e.store.FindUserByID(ctx, userID)
	if err != nil {
		e.metricInc(MetricInternalFault)
		return nil, internalError(err)
	}
	if user == nil {
		// The credential was consumed but its owner is gone.
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, userID.String(), "", ErrUserNotFound, nil)
		return nil, ErrUserNotFound
	}

	if gateErr := checkEligible(user); gateErr != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, user.UserID.String(), user.Username, gateErr, func() map[string]string {
			return map[string]string{"reason": "login_disabled"}
		})
		return nil, gateErr
	}

	grant, err := e.grant(ctx, user)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, user.UserID.String(), user.Username, nil, nil)
	return grant, nil
}

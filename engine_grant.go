package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	internalpkg "github.com/stocktrack/identity/internal"
	"github.com/stocktrack/identity/jwt"
	"github.com/stocktrack/identity/permission"
)

// storeRoleSource adapts the account store to the resolver's fetch
// abstraction.
type storeRoleSource struct {
	store AccountStore
}

func (s storeRoleSource) Roles(ctx context.Context, ids []uuid.UUID) ([]permission.Role, error) {
	records, err := s.store.RolesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	roles := make([]permission.Role, 0, len(records))
	for _, rec := range records {
		roles = append(roles, permission.Role{
			ID:      rec.RoleID,
			Mask:    permission.Mask64(rec.Permissions),
			Inherit: rec.Inherit,
		})
	}
	return roles, nil
}

// grant performs the issuance tail shared by login and refresh: resolve the
// effective permission mask from current role data, mint the signed session,
// issue a fresh refresh credential, and best-effort update last-login.
func (e *Engine) grant(ctx context.Context, user *UserRecord) (*Grant, error) {
	mask, err := permission.Resolve(ctx, storeRoleSource{store: e.store}, user.Roles)
	if err != nil {
		// Fail closed and loud: a mis-computed mask must never reach a
		// session.
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventInternalFault, false, user.UserID.String(), user.Username, internalError(err), func() map[string]string {
			return map[string]string{"op": "permission_resolve", "detail": err.Error()}
		})
		return nil, internalError(err)
	}

	now := time.Now()

	token, err := e.jwtManager.CreateSession(user.UserID, mask.Raw(), now)
	if err != nil {
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventInternalFault, false, user.UserID.String(), user.Username, internalError(err), func() map[string]string {
			return map[string]string{"op": "sign_session", "detail": err.Error()}
		})
		return nil, internalError(err)
	}

	tokenID, err := internalpkg.NewRefreshTokenID()
	if err != nil {
		e.metricInc(MetricInternalFault)
		return nil, internalError(err)
	}
	if err := e.store.InsertRefreshToken(ctx, RefreshRecord{
		TokenID:  tokenID,
		UserID:   user.UserID,
		IssuedAt: now,
	}); err != nil {
		e.metricInc(MetricInternalFault)
		e.emitAudit(ctx, auditEventInternalFault, false, user.UserID.String(), user.Username, internalError(err), func() map[string]string {
			return map[string]string{"op": "insert_refresh", "detail": err.Error()}
		})
		return nil, internalError(err)
	}

	// Best-effort and deliberately non-transactional: a failed last-login
	// update is logged, never surfaced, and the grant still returns.
	if err := e.store.UpdateLastLogin(ctx, user.UserID, now); err != nil {
		e.metricInc(MetricLastLoginUpdateFailed)
		e.emitAudit(ctx, auditEventLastLoginUpdateFailed, false, user.UserID.String(), user.Username, nil, func() map[string]string {
			return map[string]string{"detail": err.Error()}
		})
	}

	e.metricInc(MetricSessionIssued)

	return &Grant{
		UID:     jwt.EncodeUID(user.UserID),
		Token:   token,
		Refresh: e.urn.Encode(tokenID),
	}, nil
}

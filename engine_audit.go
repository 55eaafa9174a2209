package identity

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventRefreshSuccess        = "refresh_success"
	auditEventRefreshInvalid        = "refresh_invalid"
	auditEventPasswordSetSuccess    = "password_set_success"
	auditEventPasswordSetFailure    = "password_set_failure"
	auditEventLastLoginUpdateFailed = "last_login_update_failed"
	auditEventInternalFault         = "internal_fault"
)

// AuditErrorCode is the stable machine-readable cause recorded on audit
// events. Unlike the wire responses, audit records keep the real cause.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountDisabled    AuditErrorCode = "account_disabled"
	auditErrRefreshInvalid     AuditErrorCode = "refresh_invalid"
	auditErrUserNotFound       AuditErrorCode = "user_not_found"
	auditErrWriteUnconfirmed   AuditErrorCode = "write_not_acknowledged"
	auditErrInternal           AuditErrorCode = "internal"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	username string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserID:    userID,
		Username:  username,
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountDisabled):
		return auditErrAccountDisabled
	case errors.Is(err, ErrInvalidRefresh):
		return auditErrRefreshInvalid
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrWriteNotAcknowledged):
		return auditErrWriteUnconfirmed
	}

	var tagged *Error
	if errors.As(err, &tagged) {
		switch tagged.Kind {
		case KindAuth:
			// disabled-with-reason carries a dynamic message
			return auditErrAccountDisabled
		case KindInternal:
			return auditErrInternal
		}
	}

	return auditErrInternal
}

package internaldefs

import (
	identity "github.com/stocktrack/identity"
)

// CounterDef binds one engine counter to its exported name and help text.
//
// CounterDef instances are intended to be configured during initialization
// and then treated as immutable.
type CounterDef struct {
	ID   identity.MetricID
	Name string
	Help string
}

// CounterDefs is the canonical counter list, in engine declaration order.
var CounterDefs = []CounterDef{
	{ID: identity.MetricLoginSuccess, Name: "identity_login_success_total", Help: "Successful login attempts."},
	{ID: identity.MetricLoginFailure, Name: "identity_login_failure_total", Help: "Failed login attempts."},
	{ID: identity.MetricRefreshSuccess, Name: "identity_refresh_success_total", Help: "Successful refresh redemptions."},
	{ID: identity.MetricRefreshFailure, Name: "identity_refresh_failure_total", Help: "Failed refresh redemptions."},
	{ID: identity.MetricSessionIssued, Name: "identity_session_issued_total", Help: "Signed sessions minted."},
	{ID: identity.MetricPasswordSet, Name: "identity_password_set_total", Help: "Administrative password writes."},
	{ID: identity.MetricLastLoginUpdateFailed, Name: "identity_last_login_update_failed_total", Help: "Best-effort last-login updates that failed."},
	{ID: identity.MetricInternalFault, Name: "identity_internal_fault_total", Help: "Internal faults across all operations."},
}

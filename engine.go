package identity

import (
	internalpkg "github.com/stocktrack/identity/internal"
	internalaudit "github.com/stocktrack/identity/internal/audit"
	"github.com/stocktrack/identity/jwt"
	"github.com/stocktrack/identity/password"
)

// Engine is the identity and session issuance engine. Instances are built
// once through [Builder.Build] and are safe for concurrent use; the engine
// holds no per-request state and caches no permission, session, or
// credential data.
type Engine struct {
	config     Config
	store      AccountStore
	hasher     *password.Hasher
	jwtManager *jwt.Manager
	urn        *internalpkg.URNCodec
	audit      *internalaudit.Dispatcher
	metrics    *Metrics
}

// Close flushes and stops the audit dispatcher. The engine itself needs no
// teardown; stores and key providers live for the process duration.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped reports how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

// Package identity is the identity and session issuance engine for the
// stocktrack platform: credential verification with enumeration-resistant
// timing, transitive permission resolution over a role-inheritance graph,
// signed-session minting, and single-use refresh credential lifecycle.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// identity is the public surface. It exposes [Engine], [Builder], [Config],
// the [AccountStore] and [KeyProvider] integration interfaces, and the tagged
// [Error] taxonomy. Flow orchestration lives in the engine files; audit
// dispatch, metrics storage, and the refresh URN codec live under internal/
// and are never exported directly.
//
// # What this package must NOT do
//
//   - Expose store clients or encoding details in its public API.
//   - Cache permission, session, or credential state in process memory;
//     every login/refresh recomputes the bitmask from current role data.
//   - Distinguish externally between security-equivalent failure causes
//     (unknown user vs wrong password, consumed vs immature refresh token).
package identity

// Package audit provides the asynchronous audit event pipeline for the
// identity engine.
//
// Flows emit [Event] values through a [Dispatcher], which forwards them to a
// caller-supplied [Sink] on a dedicated goroutine so that emission never
// blocks a login or refresh in flight. Backpressure behavior is
// configurable: drop-and-count, or block until the buffer drains.
//
// # What this package must NOT do
//
//   - Perform I/O itself (sinks own their writers).
//   - Import the identity root package or any sibling package.
package audit

// Package permission computes effective authorization bitmasks over the
// role-inheritance graph.
//
// A role carries a 64-bit permission mask and a set of inherit edges to
// other roles. The effective mask of a user is the bitwise OR of the masks
// of every role reachable from the user's assigned roles, the assigned roles
// included. The graph is not guaranteed acyclic, so [Resolve] walks it with
// an explicit visited set: OR is idempotent, but the visited set bounds the
// walk and guarantees termination.
//
// The traversal is deliberately storage-agnostic — the [Source] abstraction
// fetches role batches, and the closure logic behaves identically over a
// relational, document, or in-memory backend.
//
// # What this package must NOT do
//
//   - Default a failed resolution to zero or any other mask. Permission
//     computation fails closed and loud.
//   - Import the identity root package.
package permission

// Package internal holds cross-cutting primitives shared by the identity
// engine: the refresh credential URN codec and secure random identifier
// generation. Nothing here is part of the public API.
package internal

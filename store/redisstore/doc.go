// Package redisstore is the Redis-backed account store for the identity
// engine.
//
// Layout (under a configurable prefix):
//
//	usernames            hash: username -> user id (the uniqueness index)
//	user:<uuid>          hash: account fields
//	role:<uuid>          hash: role fields
//	refresh:<id-b64url>  string: JSON refresh record, TTL = retention horizon
//
// Refresh redemption is a single Lua script performing a conditional
// find-and-delete: identifier, owner, and minimum-age checks execute
// atomically with the delete, so concurrent redemptions of the same
// credential admit exactly one winner even across process instances.
// Retention is passive: Redis expires unredeemed records at the horizon.
package redisstore

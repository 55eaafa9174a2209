// Package password implements secret-keyed argon2id hashing for the
// identity engine.
//
// Hashes are serialized in PHC string format
// ($argon2id$v=19$m=...,t=...,p=...$salt$hash). The deployment-wide pepper
// is applied as an HMAC-SHA256 pre-hash of the password, so a stolen hash
// database is not attackable without the pepper, which lives outside the
// data store.
//
// # What this package must NOT do
//
//   - Persist anything.
//   - Log password material or the pepper.
package password

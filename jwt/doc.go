// Package jwt mints and parses the signed session tokens issued by the
// identity engine.
//
// A session token is self-contained: subject identifier (uid, base64 of the
// user ID's canonical 16-byte form), effective permission mask (p, base64 of
// the 8-byte big-endian encoding), issuer and audience URNs, issued-at, and
// a fixed 1-hour expiration window. The signing algorithm is fixed per
// deployment — ed25519 (PKCS#8 PEM or raw seed) or hs256 — and embedded in
// the token header.
//
// Verification by downstream resource servers is out of scope for the
// engine; [Manager.ParseSession] exists for those collaborators and for
// mint-time correctness tests.
package jwt

// Package httpapi exposes the identity engine over HTTP.
//
// Two surfaces exist. The public surface carries the credential flows
// (POST /users/login, POST /users/refresh). The internal surface carries
// the administrative password path (POST /users/password) and the health
// probe, and is meant to be bound to a non-routable address.
//
// Every error leaves in the envelope {"error":true,"status":N,"message":S}
// with the status mirrored in the HTTP code. Internal fault detail never
// reaches a response body.
package httpapi

// Package middleware holds the HTTP plumbing on both sides of a bearer-authenticated call.
//
// # Client side
//
//   - [BearerTransport]: attaches the session token to requests marked with [WithBearer]
//     and reports 401/403 answers to an auth-failure hook.
//   - [RequestIDTransport]: stamps every request with an X-Request-ID.
//
// # Server side
//
//   - [Guard]: rejects requests without a valid bearer token and injects the verified
//     identity into the request context. Used by the mock backend.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into callbacks. It does NOT own the token,
// decide what an auth failure does to the session, or verify tokens itself.
//
// # What this package must NOT do
//
//   - Mutate or persist tokens.
//   - Retry rejected requests.
package middleware

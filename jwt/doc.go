// Package jwt reads and issues the bearer tokens used by the AlgoLearn backend.
//
// Clients never verify signatures: the backend is the only party holding the key, so
// [Inspect] decodes claims without verification and is used for display and for the
// optional local expiry check at startup. [Manager] signs and verifies HS256 tokens and
// exists for the in-process mock backend.
//
// # What this package must NOT do
//
//   - Treat an inspected token as trusted identity.
//   - Refresh or renew tokens.
package jwt

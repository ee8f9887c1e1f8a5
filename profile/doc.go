// Package profile caches the signed-in user's profile record.
//
// The cache is keyed by the session token: a record fetched for one token is never
// returned for another, and concurrent lookups for the same token share one
// GET /users/me round trip.
//
// # Architecture boundaries
//
// profile reads the token through middleware.TokenSource and fetches through a
// [Fetcher] (normally *api.Client). It does not import the session manager; callers
// connect [Cache.Invalidate] to session changes.
//
// # What this package must NOT do
//
//   - Change or persist the session token.
//   - Serve a record to a token other than the one it was fetched with.
package profile

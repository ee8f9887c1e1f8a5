// Package mockserver is an in-process AlgoLearn authentication backend for local
// development and end-to-end tests.
//
// It serves the five endpoints the session client calls (POST /login,
// POST /register, GET /checkemail, GET /users/me, DELETE /users/me) with the
// {success, message, data} envelope, issues HS256 tokens through the jwt package,
// hashes passwords with Argon2id, and guards /users/me with middleware.Guard.
//
// # Architecture boundaries
//
// Accounts live behind [UserStore]. [NewMemoryUsers] keeps them in process memory;
// [NewRedisUsers] keeps them in Redis so several server processes can share them.
//
// # What this package must NOT do
//
//   - Serve production traffic. There is no rate limiting, e-mail verification or
//     token revocation.
//   - Return password hashes in any response.
package mockserver

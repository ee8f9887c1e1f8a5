// Package api is the HTTP client for the AlgoLearn authentication endpoints.
//
// # Endpoints
//
//	POST   /login        {email, password}            -> data.token
//	POST   /register     {username, email, password}  -> data.token
//	GET    /checkemail?email=                          -> registered or not
//	GET    /users/me     (bearer)                      -> user record
//	DELETE /users/me     (bearer)                      -> ack
//
// Every JSON answer is an envelope {success, message?, data?|payload?}. Any envelope that
// is not successful and any non-2xx status is a failure surfaced as [*Error], whose
// message is the server's own text when it sent one.
//
// # Architecture boundaries
//
// The client never stores tokens. Bearer calls read the token through the bound
// [middleware.TokenSource] and report 401/403 through the bound auth-failure hook; the
// session Manager decides what that means.
package api

// Package goSession owns the client-side authentication session of an AlgoLearn
// front-end: the bearer token, where it is persisted, and the
// Loading/Unauthenticated/Authenticated lifecycle derived from it.
//
// A [Manager] is built with [Builder], started with [Manager.Initialize], and then
// driven by [Manager.SignIn], [Manager.SignUp], [Manager.SignOut] and
// [Manager.OnAuthFailure]. UI code reads [Manager.Snapshot] and waits on
// [Manager.Ready] before choosing between signed-in and signed-out views.
//
// # Architecture boundaries
//
// goSession is the public surface. It exposes [Manager], [Builder], [Config], and value
// types (Snapshot, Change, Event, MetricsSnapshot). Persistence lives in tokenstore,
// HTTP lives in api and middleware, and cached profile data lives in profile. Those
// packages never import goSession.
//
// # What this package must NOT do
//
//   - Let any component other than [Manager] change the token.
//   - Return storage failures to callers. They are logged, counted and emitted as events.
//   - Retry or refresh tokens. A rejected token ends the session.
//   - Perform I/O during Build beyond opening the configured token store.
package goSession

// Package rate provides the Redis-backed failed-login throttle used by the
// mock backend.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key layout:
//   - <prefix>:rl:login:<email>  failed logins per account
//   - <prefix>:rl:ip:<addr>      failed logins per client address
//
// # What this package must NOT do
//
//   - Decide HTTP responses. Callers map ErrRateLimited to a status.
//   - Be imported outside this module.
package rate

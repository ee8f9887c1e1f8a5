// Package validate implements the local input checks run before any network call.
//
// Failures are returned as [*Error] values whose message is ready to be shown next to
// the offending field.
package validate

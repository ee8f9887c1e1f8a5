// Package password hashes and verifies the mock backend's account passwords with
// Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher.NeedsRehash] reports hashes produced with weaker parameters so the caller
// can replace them after the next successful sign-in.
//
// # What this package must NOT do
//
//   - Store passwords or hashes.
//   - Enforce password policy beyond refusing to hash an empty value.
package password

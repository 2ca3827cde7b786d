// Package password hashes and verifies user passwords.
//
// New hashes are Argon2id PHC strings with a per-hash random salt:
//
//	$argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
//
// Verification also accepts bcrypt hashes ($2a$, $2b$, $2y$) so accounts
// imported from the previous Node backend keep working. Both paths compare in
// constant time.
package password

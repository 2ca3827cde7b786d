// Package token issues and verifies Kite's stateless bearer tokens.
//
// A token carries only the subject identity id, its issue time and its
// expiry. Two wire formats are supported:
//
//   - jwt: HS256 signed with a shared secret (default)
//   - paseto: v4.public signed with an Ed25519 key
//
// Verification checks structure, then signature, then expiry, and reports only
// the kind of failure (ErrInvalidToken or ErrExpiredToken). There is no
// server-side session state, so a token cannot be revoked before it expires.
package token

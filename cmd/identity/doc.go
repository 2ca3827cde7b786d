// Package identity implements Kite's credential store.
//
// It owns registered identities (users), their password hashes, profile fields,
// roles and flat follower/following lists. Password material never leaves this
// package except as an opaque PHC string inside UserAuth.
package identity

// Package auth resolves the caller of every protected request.
//
// Gate.RequireAuth verifies the bearer token, loads the identity it names and
// attaches it to the request context. Handlers read it with IdentityFromContext
// and never parse tokens themselves. RequireRole narrows a protected route to
// identities holding one of the given roles.
package auth

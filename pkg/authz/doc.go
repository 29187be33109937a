// Package authz implements Critiq's access decision engine.
//
// Authorization is a pure function of the request: the caller's role and
// authentication state, the resource kind, the action, and whether the
// caller owns the target. Each resource kind maps to an ordered list of
// named policies; a request is allowed only if every policy in the list
// allows it. There is no state, no database, and no policy that can
// override another policy's deny.
package authz

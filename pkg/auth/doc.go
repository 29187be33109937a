// Package auth implements Critiq's passwordless authentication flow.
//
// There are no passwords. A user signs up with a (username, email) pair,
// receives a short-lived confirmation code by email, and exchanges that code
// for a signed bearer token:
//
//	client                    critiq                       mailbox
//	  |-- POST /auth/signup ---->|                            |
//	  |                          |--- confirmation code ----->|
//	  |<------- 200 (profile) ---|                            |
//	  |<------------------- code arrives out-of-band ---------|
//	  |-- POST /auth/token ----->|                            |
//	  |<------- 200 (JWT) -------|                            |
//
// Confirmation codes are produced by ConfirmationCodeIssuer: an HMAC over the
// username, a per-issuance salt stored on the user record, and an issue
// timestamp. The salt rotates on every signup, so only the most recently
// issued code verifies, and it is cleared on the first successful exchange,
// so a code authenticates at most once. Codes also expire after a configured
// window.
//
// Access tokens are stateless HS256 JWTs carrying the username and an expiry.
// They are never persisted and there is no revocation list; the bearer's
// role is re-read from the store on every request, so role changes take
// effect immediately.
//
// Both issuers are explicit service objects constructed with their secrets at
// startup. Nothing in this package reads process-wide state.
package auth

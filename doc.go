// Package accounts provides user account primitives: registration with
// mandatory email verification, short-lived single-use lifecycle tokens,
// JWT session issuance over an HTTP-only cookie, and path-based request
// gating.
//
// Lifecycle tokens:
//   - Verification and reset tokens live on the user record itself, one
//     slot per purpose. Issuing a new token overwrites the outstanding one,
//     and redemption clears the slot in the same conditional update, so a
//     token can never be spent twice even under concurrent redemption.
//   - Tokens come from a CSPRNG and expire two minutes after issuance.
//     TokenManager is the only component that writes the token fields.
//
// Sessions:
//   - A successful login produces an HS256-signed JWT carried in an
//     HTTP-only cookie. Credentials are self-describing: validation checks
//     signature and expiry only and never touches the store.
//
// Request gating:
//   - Gate maps (path, credential validity) to allow or redirect decisions
//     and is evaluated fresh on every request.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by Auther and
//     TokenManager to describe login, token, and password reset events.
//     Sinks run best-effort (errors are logged) so you can forward to a
//     database or queue without blocking authentication.
package accounts

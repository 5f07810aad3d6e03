// Package middleware exposes HTTP adapters for the authcore Engine.
//
//   - [BearerAuth] — pass-through: verifies an Authorization bearer
//     credential when present and attaches the subject to the context,
//     but never rejects on its own.
//   - [RequireSubject] — rejects requests without an authenticated subject.
//
// This package translates HTTP semantics into Engine calls. It does not
// parse credentials itself and makes no authorization decisions beyond
// pass/reject from Engine.VerifyAccess.
package middleware

// Package authcore provides the security core for token-based services:
// HMAC-signed access credentials, rotating single-use refresh credentials
// with replay detection, a second-factor gate for administrative surfaces,
// and fixed-window rate limiting.
//
// The package is the public surface. It exposes [Engine], [Builder],
// [Config], and value types; storage backends live under refresh/ and the
// HTTP filters under gate/, ratelimit/, and middleware/. Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// The Engine never stores raw refresh credentials, never distinguishes
// refresh-rejection reasons to callers, and never accepts a signing key
// shorter than 32 bytes or equal to the shipped placeholder.
package authcore

package authcore

import "context"

type clientAddrContextKey struct{}
type userAgentContextKey struct{}
type subjectContextKey struct{}

// WithClientAddr attaches the caller's network address to ctx. The Engine
// uses it for refresh-credential context binding; middleware uses it for
// rate limiting.
func WithClientAddr(ctx context.Context, addr string) context.Context {
	return context.WithValue(ctx, clientAddrContextKey{}, addr)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. Used by the
// refresh-credential context binding checks.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithSubject attaches an authenticated subject to ctx. Set by the bearer
// middleware after successful verification.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectContextKey{}, subject)
}

// SubjectFromContext returns the authenticated subject, if any.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	subject, _ := ctx.Value(subjectContextKey{}).(string)
	return subject, subject != ""
}

func clientAddrFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	addr, _ := ctx.Value(clientAddrContextKey{}).(string)
	return addr
}

func userAgentFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	userAgent, _ := ctx.Value(userAgentContextKey{}).(string)
	return userAgent
}

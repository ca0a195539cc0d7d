package utils

import "context"

// RequestMeta is the caller information attached to audit records
type RequestMeta struct {
	IPAddress     string
	UserAgent     string
	CorrelationID string
}

type requestMetaKey struct{}

// WithRequestMeta returns a context carrying meta
func WithRequestMeta(ctx context.Context, meta RequestMeta) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, meta)
}

// RequestMetaFrom returns the meta stored in ctx, if any
func RequestMetaFrom(ctx context.Context) (RequestMeta, bool) {
	meta, ok := ctx.Value(requestMetaKey{}).(RequestMeta)
	return meta, ok
}

package model

import "context"

type userCtxKey struct{}

// ContextWithUsername stores the logged-in user's display name in the request context.
func ContextWithUsername(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, userCtxKey{}, name)
}

// UsernameFromContext returns the logged-in user's display name, or "" when anonymous.
func UsernameFromContext(ctx context.Context) string {
	name, _ := ctx.Value(userCtxKey{}).(string)
	return name
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the base path prefix in context.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the base path from context (empty string if not set).
func BasePathFromContext(ctx context.Context) string {
	bp, _ := ctx.Value(basePathCtxKey{}).(string)
	return bp
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

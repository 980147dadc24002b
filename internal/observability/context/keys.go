package context

import "context"

type contextKey string

const (
	requestIDKey  contextKey = "observability_request_id"
	accountIDKey  contextKey = "observability_account_id"
	authSchemeKey contextKey = "observability_auth_scheme"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil || requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey).(string)
	return value
}

func WithAccountID(ctx context.Context, accountID string) context.Context {
	if ctx == nil || accountID == "" {
		return ctx
	}
	return context.WithValue(ctx, accountIDKey, accountID)
}

func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(accountIDKey).(string)
	return value
}

func WithAuthScheme(ctx context.Context, scheme string) context.Context {
	if ctx == nil || scheme == "" {
		return ctx
	}
	return context.WithValue(ctx, authSchemeKey, scheme)
}

func AuthSchemeFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(authSchemeKey).(string)
	return value
}

package services

import "context"

type contextKey string

const (
	fileIDKey    contextKey = "file_id"
	parserKey    contextKey = "parser"
	requestIDKey contextKey = "request_id"
)

// WithFileID annotates context with the catalog file identifier.
func WithFileID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, fileIDKey, id)
}

// FileIDFromContext extracts the catalog file identifier if present.
func FileIDFromContext(ctx context.Context) (int64, bool) {
	v := ctx.Value(fileIDKey)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithParser annotates context with the parser step name being executed.
func WithParser(ctx context.Context, parser string) context.Context {
	if parser == "" {
		return ctx
	}
	return context.WithValue(ctx, parserKey, parser)
}

// ParserFromContext returns the parser step name if present.
func ParserFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(parserKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

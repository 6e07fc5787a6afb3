package logger

import "context"

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the per-request fields that DebugCtx/InfoCtx/WarnCtx/
// ErrorCtx prepend to every log line for a given RPC call.
type LogContext struct {
	Procedure  string
	ClientAddr string
	XID        uint32
	UID        uint32
	GID        uint32
}

// WithContext returns a child of ctx carrying lc.
func WithContext(ctx context.Context, lc LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored on ctx, or nil if none is set.
func FromContext(ctx context.Context) *LogContext {
	lc, ok := ctx.Value(logContextKey).(LogContext)
	if !ok {
		return nil
	}
	return &lc
}

// WithProcedure returns a copy of lc with Procedure set.
func (lc LogContext) WithProcedure(name string) LogContext {
	lc.Procedure = name
	return lc
}

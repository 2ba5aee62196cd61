package logging

import "context"

type debugModeKey struct{}

// EnableDebugMode returns a context under which CDebugw logs even when the logger is above debug
// level.
func EnableDebugMode(ctx context.Context) context.Context {
	return context.WithValue(ctx, debugModeKey{}, true)
}

// IsDebugMode returns whether ctx came from EnableDebugMode.
func IsDebugMode(ctx context.Context) bool {
	on, _ := ctx.Value(debugModeKey{}).(bool)
	return on
}

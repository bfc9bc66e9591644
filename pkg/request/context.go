package request

// ctxKey is a private type so the context keys below never collide with
// keys set by other packages.
type ctxKey int

const (
	// CtxMaxAttempts overrides the retry budget for a single call, used by
	// pkg/llm/failover to force immediate failure on all but the last
	// candidate provider in its fallback chain.
	CtxMaxAttempts ctxKey = iota
	// CtxProviderLabel tags a request with the logical provider name for
	// tracker/log attribution independent of the request's URL host.
	CtxProviderLabel
)

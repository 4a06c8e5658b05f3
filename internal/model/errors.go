package model

import "errors"

// Error taxonomy for the memory subsystem.
//
// ErrInvalidRequest and store failures propagate to the caller.
// ErrEmbeddingFailed and ErrRateLimited are absorbed wherever a
// degraded mode exists (write without a vector, importance-only
// recall, gateway fallback chain).
var (
	// ErrInvalidRequest marks caller errors: missing owner keys or
	// otherwise malformed input.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrEmbeddingFailed marks a failed embedding generation. Non-fatal
	// for writes; recall degrades to importance ranking.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrRateLimited marks a fail-fast rejection by a provider's
	// rate-limit window. Transient; triggers the gateway fallback chain.
	ErrRateLimited = errors.New("rate limited")
)

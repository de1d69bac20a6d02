package blob

import "errors"

// Error kinds fail closed on any ambiguity (spec.md §4.1 "Failure
// semantics", §7). Callers should use errors.Is against these
// sentinels; the orchestrator's RPC edge maps each to a gRPC code.
var (
	ErrIo                   = errors.New("blob: io error")
	ErrCrypto               = errors.New("blob: crypto error")
	ErrIntegrity            = errors.New("blob: integrity check failed")
	ErrNotFound             = errors.New("blob: digest not found")
	ErrWrongKey             = errors.New("blob: wrong key")
	ErrPartialWriteDetected = errors.New("blob: partial write detected")
)

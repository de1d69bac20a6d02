// Package remotetier implements the optional, best-effort off-box
// mirror for committed blobs described in SPEC_FULL.md §4.1. A tier is
// never consulted by blob.Store.Get; it exists purely so a deployment
// can recover a blob root from cloud storage after total local loss.
package remotetier

import (
	"context"
	"io"
)

// Tier mirrors a blob to a remote object store, keyed by its hex
// digest. Implementations must not be consulted for reads in the hot
// path — they are a durability enrichment, not part of the blob
// store's consistency invariants.
type Tier interface {
	// Put uploads the already-encrypted, already-compressed on-disk
	// bytes for digestHex. Implementations should treat a pre-existing
	// remote object with the same key as success (the content is
	// immutable once written, like the local store).
	Put(ctx context.Context, digestHex string, r io.Reader, size int64) error
}

// NopTier discards everything; the default when ORCA_REMOTE_TIER=none.
type NopTier struct{}

func (NopTier) Put(context.Context, string, io.Reader, int64) error { return nil }

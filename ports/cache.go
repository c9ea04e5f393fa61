package ports

import (
	"context"

	"omicpath/domain/core"
)

// CachePort stores checkpointed analysis results keyed by a content hash of
// their inputs. Get returns core.ErrCacheMiss for absent keys.
type CachePort interface {
	Get(ctx context.Context, key core.Hash) ([]byte, error)
	Put(ctx context.Context, key core.Hash, value []byte) error
}

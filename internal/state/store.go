package state

import "context"

// Store is the durable KV surface used for counters, the open-hedge
// snapshot, and operator bookkeeping.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

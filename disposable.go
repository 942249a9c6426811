package reqwire

import "context"

// Disposable is implemented by provider results that own a resource needing
// release once the request completes.
//
// Example:
//
//	type txHandle struct {
//	    tx *sql.Tx
//	}
//
//	func (h *txHandle) Close() error {
//	    return h.tx.Rollback()
//	}
type Disposable interface {
	Close() error
}

// DisposableWithContext allows disposal with context for graceful shutdown.
// Implementations should respect context cancellation.
type DisposableWithContext interface {
	Close(ctx context.Context) error
}

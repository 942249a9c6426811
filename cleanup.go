package reqwire

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ScopedValue pairs a dependency value with the release of the resource
// backing it. A provider returning one hands ownership of the release to the
// request's CleanupGroup; the resolver stores only the inner value.
type ScopedValue struct {
	value   any
	release func(ctx context.Context) error
}

// NewScoped wraps value with a release function invoked exactly once when
// the owning request exits its resolution phase.
func NewScoped(value any, release func(ctx context.Context) error) *ScopedValue {
	return &ScopedValue{value: value, release: release}
}

// Value returns the wrapped dependency value.
func (s *ScopedValue) Value() any { return s.value }

// CleanupGroup accumulates scoped-resource handles during one request's
// dependency resolution. It is created per request, exclusively owned by
// that request's execution context, and closed exactly once when request
// handling exits its resolution phase, on every exit path including
// failures.
type CleanupGroup struct {
	mu       sync.Mutex
	releases []func(ctx context.Context) error
	closed   int32
}

// NewCleanupGroup creates an empty cleanup group.
func NewCleanupGroup() *CleanupGroup {
	return &CleanupGroup{}
}

// Register adds a release function to the group.
func (g *CleanupGroup) Register(release func(ctx context.Context) error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releases = append(g.releases, release)
}

// Capture inspects a provider result: a *ScopedValue has its release
// registered and is unwrapped; values implementing Disposable or
// DisposableWithContext are registered as-is. Anything else passes through.
func (g *CleanupGroup) Capture(value any) any {
	switch v := value.(type) {
	case *ScopedValue:
		g.Register(v.release)
		return v.value
	case DisposableWithContext:
		g.Register(v.Close)
		return value
	case Disposable:
		g.Register(func(context.Context) error { return v.Close() })
		return value
	default:
		return value
	}
}

// Len returns the number of registered release handles.
func (g *CleanupGroup) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.releases)
}

// Close releases every registered handle in reverse registration order,
// aggregating failures. Closing is idempotent; handles run exactly once.
func (g *CleanupGroup) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&g.closed, 0, 1) {
		return nil
	}

	g.mu.Lock()
	releases := g.releases
	g.releases = nil
	g.mu.Unlock()

	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		if err := releases[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

package reqwire

import (
	"context"
	"sync"
)

// Values is the request-local map extractors and the dependency resolver
// write into. It is exclusively owned by one request's execution context;
// the lock only serializes writers within one dependency batch.
type Values struct {
	mu sync.RWMutex
	m  map[string]any
}

// NewValues creates an empty values map for one request.
func NewValues() *Values {
	return &Values{m: make(map[string]any)}
}

// Get returns the value stored under name.
func (v *Values) Get(name string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.m[name]
	return val, ok
}

// Set stores a value under name.
func (v *Values) Set(name string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.m[name] = value
}

// Len returns the number of stored values.
func (v *Values) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.m)
}

// Map returns a snapshot copy, for handing off to the validation/coercion
// layer.
func (v *Values) Map() map[string]any {
	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make(map[string]any, len(v.m))
	for k, val := range v.m {
		out[k] = val
	}
	return out
}

// Data awaits the deferred body value stored under "data" and replaces the
// future with the decoded result. Safe to call repeatedly; decoding happens
// once. Returns ErrNoData when the plan declared no body.
func (v *Values) Data(ctx context.Context) (any, error) {
	raw, ok := v.Get(KeyData)
	if !ok {
		return nil, ErrNoData
	}

	future, isFuture := raw.(*BodyFuture)
	if !isFuture {
		return raw, nil
	}

	decoded, err := future.Await(ctx)
	if err != nil {
		return nil, err
	}
	v.Set(KeyData, decoded)
	return decoded, nil
}

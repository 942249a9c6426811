package reqwire

import (
	"context"
	"sort"
	"sync"

	"github.com/reqwire/reqwire/internal/graph"
)

// Args carries the resolved argument values a provider is invoked with,
// keyed by declared argument name. Values are raw extracted values, reserved
// context objects, or results of earlier dependency batches.
type Args map[string]any

// String returns the argument as a string, or "" when absent or not a string.
func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

// Strings returns a sequence argument, or nil when absent.
func (a Args) Strings(name string) []string {
	s, _ := a[name].([]string)
	return s
}

// ProviderFunc is a user-supplied callable producing a dependency value.
// Invocations may block on I/O; ctx is the request context.
type ProviderFunc func(ctx context.Context, args Args) (any, error)

// Provider is a callable registered under a string key. It owns no state
// except an optional single-use cache slot, populated only when caching is
// enabled.
//
// The cache lifetime is the process lifetime of the provider instance, not
// per-request: callers needing per-request freshness must not enable caching.
type Provider struct {
	key       string
	fn        ProviderFunc
	signature Signature
	useCache  bool

	cacheMu   sync.Mutex
	cached    any
	hasCached bool
}

// Key returns the registration key.
func (p *Provider) Key() string { return p.key }

// ParamNames implements graph.Provider. Argument names matching other
// registered provider keys become graph edges.
func (p *Provider) ParamNames() []string { return p.signature.ParamNames() }

// Signature returns the provider's declared arguments.
func (p *Provider) Signature() Signature { return p.signature }

// cachedValue returns the cache slot. Guarded against concurrent first-write
// races; last-writer-wins, cached values are assumed idempotent.
func (p *Provider) cachedValue() (any, bool) {
	if !p.useCache {
		return nil, false
	}
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	return p.cached, p.hasCached
}

func (p *Provider) storeCached(v any) {
	if !p.useCache {
		return
	}
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cached = v
	p.hasCached = true
}

// ProviderOption configures a provider at registration.
type ProviderOption func(*Provider)

// WithCache enables the provider's single-slot, process-lifetime cache.
func WithCache() ProviderOption {
	return func(p *Provider) {
		p.useCache = true
	}
}

// WithSignature declares the provider's arguments, including any of its own
// parameters, reserved context keys, and dependency keys.
func WithSignature(sig Signature) ProviderOption {
	return func(p *Provider) {
		p.signature = sig
	}
}

// WithParams is shorthand for WithSignature with params only.
func WithParams(params ...Param) ProviderOption {
	return func(p *Provider) {
		p.signature = Signature{Params: params}
	}
}

// Registry is the string-keyed provider collection for one application or
// route layer. It is the only configuration surface this package exposes to
// application code. Register everything before compiling plans; Registry is
// safe for concurrent reads afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]*Provider)}
}

// Provide registers fn under key. Registering a duplicate or reserved key is
// a configuration error.
func (r *Registry) Provide(key string, fn ProviderFunc, opts ...ProviderOption) error {
	if key == "" {
		return ErrEmptyKey
	}
	if fn == nil {
		return ErrNilProviderFunc
	}
	if reservedKeys[key] {
		return &ReservedKeyError{Keys: []string{key}}
	}

	provider := &Provider{key: key, fn: fn}
	for _, opt := range opts {
		opt(provider)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers[key]; exists {
		return &AlreadyRegisteredError{Key: key}
	}
	r.providers[key] = provider
	return nil
}

// Get returns the provider registered under key, if any.
func (r *Registry) Get(key string) (*Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	return p, ok
}

// Has reports whether key names a registered provider.
func (r *Registry) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// Keys returns all registered keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.providers))
	for key := range r.providers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Lookup implements graph.Registry.
func (r *Registry) Lookup(key string) (graph.Provider, bool) {
	p, ok := r.Get(key)
	if !ok {
		return nil, false
	}
	return p, true
}

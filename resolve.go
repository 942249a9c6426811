package reqwire

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/reqwire/reqwire/internal/graph"
)

// ResolveDependencies invokes the plan's dependency providers batch by
// batch, writing each result into values under the provider's key. Members
// of one batch run concurrently; a batch starts only after every earlier
// batch finished.
//
// The returned CleanupGroup is non-nil on every path, including failure, so
// that resources acquired before the failing provider are still released.
// Callers must Close it when request handling exits its resolution phase.
func (p *Plan) ResolveDependencies(ctx context.Context, values *Values) (*CleanupGroup, error) {
	cleanup := NewCleanupGroup()

	for _, batch := range p.batches {
		if len(batch) == 1 {
			if err := resolveDependency(ctx, batch[0], values, cleanup); err != nil {
				return cleanup, err
			}
			continue
		}

		group, groupCtx := errgroup.WithContext(ctx)
		for _, node := range batch {
			node := node
			group.Go(func() error {
				return resolveDependency(groupCtx, node, values, cleanup)
			})
		}
		if err := group.Wait(); err != nil {
			return cleanup, err
		}
	}

	return cleanup, nil
}

// resolveDependency produces one provider's value: cache hit, or argument
// assembly from values followed by invocation. Results that carry a release
// are captured into the cleanup group before being stored.
func resolveDependency(ctx context.Context, node *graph.Node, values *Values, cleanup *CleanupGroup) error {
	provider := node.Provider.(*Provider)

	if cached, ok := provider.cachedValue(); ok {
		values.Set(node.Key, cached)
		return nil
	}

	args, err := providerArgs(ctx, provider, values)
	if err != nil {
		return err
	}

	result, err := provider.fn(ctx, args)
	if err != nil {
		return &ProviderError{Key: node.Key, Cause: err}
	}

	result = cleanup.Capture(result)
	provider.storeCached(result)
	values.Set(node.Key, result)
	return nil
}

// providerArgs assembles the invocation arguments from the values map. A
// provider consuming the body awaits the deferred decode here, so the body
// is only read when a consumer exists.
func providerArgs(ctx context.Context, provider *Provider, values *Values) (Args, error) {
	names := provider.ParamNames()
	args := make(Args, len(names))

	for _, name := range names {
		val, ok := values.Get(name)
		if !ok {
			continue
		}
		if future, isFuture := val.(*BodyFuture); isFuture {
			decoded, err := future.Await(ctx)
			if err != nil {
				return nil, err
			}
			val = decoded
		}
		args[name] = val
	}

	return args, nil
}

// Package graph builds per-route dependency graphs and computes the batch
// schedule used by the request-time resolver.
//
// A graph is built once during route registration and is immutable afterwards.
// Nodes are identified by their provider key alone, so a dependency reachable
// through multiple parents collapses to a single node instance.
package graph

import (
	"sort"
)

// Provider is the subset of a registered provider the graph needs to know
// about. The root package's provider type implements it.
type Provider interface {
	// Key returns the registration key of the provider.
	Key() string

	// ParamNames returns the declared argument names of the provider,
	// in declaration order.
	ParamNames() []string
}

// Registry resolves provider keys to providers during graph construction.
type Registry interface {
	// Lookup returns the provider registered under key, if any.
	Lookup(key string) (Provider, bool)
}

// Node is one provider within one route's dependency graph.
// Children are the providers this node's own arguments resolve to.
type Node struct {
	Key      string
	Provider Provider
	Children []*Node
}

// Build constructs the dependency graph reachable from rootKeys.
//
// A provider's children are discovered by matching its declared argument
// names against the registry. Diamond dependencies reuse the single node
// instance. A provider that requires its own key, directly or transitively,
// is a configuration error surfaced as CircularDependencyError.
func Build(rootKeys []string, registry Registry) ([]*Node, error) {
	b := &builder{
		registry: registry,
		nodes:    make(map[string]*Node),
		visiting: make(map[string]bool),
	}

	keys := make([]string, len(rootKeys))
	copy(keys, rootKeys)
	sort.Strings(keys)

	roots := make([]*Node, 0, len(keys))
	for _, key := range keys {
		node, err := b.build(key)
		if err != nil {
			return nil, err
		}
		roots = append(roots, node)
	}

	return roots, nil
}

type builder struct {
	registry Registry
	nodes    map[string]*Node
	visiting map[string]bool
	stack    []string
}

func (b *builder) build(key string) (*Node, error) {
	if node, ok := b.nodes[key]; ok {
		return node, nil
	}

	if b.visiting[key] {
		return nil, &CircularDependencyError{
			Key:  key,
			Path: cyclePath(b.stack, key),
		}
	}

	provider, ok := b.registry.Lookup(key)
	if !ok {
		return nil, &MissingProviderError{Key: key}
	}

	b.visiting[key] = true
	b.stack = append(b.stack, key)
	defer func() {
		delete(b.visiting, key)
		b.stack = b.stack[:len(b.stack)-1]
	}()

	node := &Node{Key: key, Provider: provider}
	for _, name := range provider.ParamNames() {
		if _, isDependency := b.registry.Lookup(name); !isDependency {
			continue
		}

		child, err := b.build(name)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	// Register only after the subtree completed without a cycle.
	b.nodes[key] = node
	return node, nil
}

// cyclePath trims the visit stack down to the segment that forms the cycle.
func cyclePath(stack []string, key string) []string {
	for i, k := range stack {
		if k == key {
			path := make([]string, len(stack)-i)
			copy(path, stack[i:])
			return path
		}
	}
	return []string{key}
}

// Batches computes the batch schedule for every node reachable from roots.
//
// Each batch contains nodes whose children have all been placed in earlier
// batches, so members of one batch have no dependency on each other and can
// be resolved concurrently. Concatenating the batches yields every reachable
// node exactly once. Output is deterministic: nodes within a batch are
// ordered by key.
func Batches(roots []*Node) [][]*Node {
	nodes := make(map[string]*Node)
	for _, root := range roots {
		collect(root, nodes)
	}

	remaining := make(map[string]int, len(nodes))
	dependents := make(map[string][]string, len(nodes))
	for key, node := range nodes {
		seen := make(map[string]bool, len(node.Children))
		for _, child := range node.Children {
			if seen[child.Key] {
				continue
			}
			seen[child.Key] = true
			remaining[key]++
			dependents[child.Key] = append(dependents[child.Key], key)
		}
	}

	var batches [][]*Node
	done := make(map[string]bool, len(nodes))

	for len(done) < len(nodes) {
		ready := make([]string, 0)
		for key := range nodes {
			if !done[key] && remaining[key] == 0 {
				ready = append(ready, key)
			}
		}
		if len(ready) == 0 {
			// Unreachable for graphs produced by Build, which rejects cycles.
			break
		}
		sort.Strings(ready)

		batch := make([]*Node, 0, len(ready))
		for _, key := range ready {
			batch = append(batch, nodes[key])
			done[key] = true
			for _, parent := range dependents[key] {
				remaining[parent]--
			}
		}
		batches = append(batches, batch)
	}

	return batches
}

func collect(node *Node, into map[string]*Node) {
	if _, ok := into[node.Key]; ok {
		return
	}
	into[node.Key] = node
	for _, child := range node.Children {
		collect(child, into)
	}
}

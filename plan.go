package reqwire

import (
	"sort"

	"github.com/reqwire/reqwire/internal/graph"
)

// CompileOptions are the inputs to Compile. Signature describes the handler;
// PathParams carries the path-parameter names supplied by the routing layer
// for the matched route.
type CompileOptions struct {
	Signature Signature

	// Providers is the dependency registry in effect for the route.
	Providers *Registry

	// PathParams are the path-parameter names declared on the route.
	PathParams []string

	// LayeredParams are parameters inherited from outer layers
	// (application or router level). The handler's own declaration wins
	// on a name collision, except that a layered default backfills a
	// handler parameter without one.
	LayeredParams []Param

	// Codecs supplies body codecs. Nil means DefaultCodecs.
	Codecs *CodecRegistry
}

// Plan is the compiled, immutable resolution plan for one (route, handler)
// pair: which parameters to pull from which sources, which reserved context
// objects to copy, which body decoder to call, and in what order to resolve
// dependency providers.
//
// A Plan is created once during route registration and shared read-only
// across all requests to the route. It holds no per-request state.
type Plan struct {
	pathParams   []ParameterDefinition
	queryParams  []ParameterDefinition
	headerParams []ParameterDefinition
	cookieParams []ParameterDefinition

	sequenceQueryNames map[string]bool
	reservedKeys       map[string]bool

	encoding     Encoding
	codec        Codec
	dataOptional bool

	extractors []extractor
	batches    [][]*graph.Node

	hasArgs bool
}

// Compile pre-determines what a route handler and its dependency chain need
// from a connection. It runs once per route registration; configuration
// errors are raised here and never at request time.
func Compile(opts CompileOptions) (*Plan, error) {
	if opts.Providers == nil {
		opts.Providers = NewRegistry()
	}
	if opts.Codecs == nil {
		opts.Codecs = DefaultCodecs()
	}

	pathSet := make(map[string]bool, len(opts.PathParams))
	for _, name := range opts.PathParams {
		pathSet[name] = true
	}

	if err := validateKeys(opts, pathSet); err != nil {
		return nil, err
	}

	rootKeys := dependencyRoots(opts.Signature, opts.Providers)
	roots, err := graph.Build(rootKeys, opts.Providers)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		sequenceQueryNames: make(map[string]bool),
		reservedKeys:       make(map[string]bool),
	}

	for _, name := range opts.Signature.ParamNames() {
		if reservedKeys[name] {
			p.reservedKeys[name] = true
		}
	}

	p.classifyDefinitions(paramDefinitions(opts, pathSet))
	p.bindDeclaredBody(opts.Signature)

	// Compile each dependency's own sub-plan and merge its expectations
	// upward. Sub-plans see the same registry, path parameters and layers.
	for _, key := range rootKeys {
		provider, _ := opts.Providers.Get(key)
		subPlan, err := Compile(CompileOptions{
			Signature:     provider.signature,
			Providers:     opts.Providers,
			PathParams:    opts.PathParams,
			LayeredParams: opts.LayeredParams,
			Codecs:        opts.Codecs,
		})
		if err != nil {
			return nil, err
		}
		if err := p.mergeSubPlan(subPlan); err != nil {
			return nil, err
		}
	}

	if err := p.bindCodec(opts.Codecs); err != nil {
		return nil, err
	}

	p.batches = graph.Batches(roots)
	p.hasArgs = len(p.pathParams)+len(p.queryParams)+len(p.headerParams)+len(p.cookieParams)+
		len(p.reservedKeys)+len(rootKeys) > 0
	p.extractors = p.buildExtractors()

	return p, nil
}

// dependencyRoots returns the registry keys directly referenced by the
// signature, in declaration order without duplicates.
func dependencyRoots(sig Signature, providers *Registry) []string {
	var roots []string
	seen := make(map[string]bool)
	for _, name := range sig.ParamNames() {
		if providers.Has(name) && !seen[name] {
			seen[name] = true
			roots = append(roots, name)
		}
	}
	return roots
}

// validateKeys fails fast on ambiguous keys and reserved-keyword collisions.
func validateKeys(opts CompileOptions, pathSet map[string]bool) error {
	dependencyKeys := make(map[string]bool)
	for _, key := range opts.Providers.Keys() {
		dependencyKeys[key] = true
	}

	parameterNames := make(map[string]bool)
	for _, p := range opts.Signature.Params {
		if p.hasAlias() {
			parameterNames[p.Name] = true
		}
	}
	for _, p := range opts.LayeredParams {
		parameterNames[p.Name] = true
	}

	var ambiguous []string
	for name := range pathSet {
		if dependencyKeys[name] || parameterNames[name] {
			ambiguous = append(ambiguous, name)
		}
	}
	for name := range dependencyKeys {
		if parameterNames[name] {
			ambiguous = append(ambiguous, name)
		}
	}
	if len(ambiguous) > 0 {
		return &AmbiguousKeyError{Keys: dedupe(ambiguous)}
	}

	var usedReserved []string
	for name := range mergeSets(pathSet, dependencyKeys, parameterNames) {
		if reservedKeys[name] {
			usedReserved = append(usedReserved, name)
		}
	}
	if len(usedReserved) > 0 {
		return &ReservedKeyError{Keys: usedReserved}
	}

	return nil
}

// paramDefinitions computes the handler's own parameter definitions,
// combining its signature with layered parameters.
func paramDefinitions(opts CompileOptions, pathSet map[string]bool) []ParameterDefinition {
	ignored := func(name string) bool {
		return reservedKeys[name] || opts.Providers.Has(name)
	}

	layered := make(map[string]Param, len(opts.LayeredParams))
	for _, p := range opts.LayeredParams {
		layered[p.Name] = p
	}

	var defs []ParameterDefinition

	for _, p := range opts.LayeredParams {
		if ignored(p.Name) || opts.Signature.declares(p.Name) {
			continue
		}
		defs = append(defs, newParameterDefinition(p, pathSet))
	}

	for _, p := range opts.Signature.Params {
		if ignored(p.Name) {
			continue
		}

		layeredParam, isLayered := layered[p.Name]
		if !isLayered {
			defs = append(defs, newParameterDefinition(p, pathSet))
			continue
		}

		// Declared on both layers: the handler's declaration wins when
		// it carries an explicit alias; a handler param without a
		// default inherits the layered one.
		field := p
		if !p.hasAlias() && layeredParam.hasAlias() {
			field = layeredParam
			field.Name = p.Name
		}
		if field.Default == nil {
			field.Default = layeredParam.Default
		}
		field.Optional = p.Optional || layeredParam.Optional
		defs = append(defs, newParameterDefinition(field, pathSet))
	}

	return defs
}

func (p *Plan) classifyDefinitions(defs []ParameterDefinition) {
	for _, def := range defs {
		switch def.Source {
		case SourcePath:
			p.pathParams = append(p.pathParams, def)
		case SourceHeader:
			p.headerParams = append(p.headerParams, def)
		case SourceCookie:
			p.cookieParams = append(p.cookieParams, def)
		default:
			p.queryParams = append(p.queryParams, def)
			if def.Sequence {
				p.sequenceQueryNames[def.FieldAlias] = true
			}
		}
	}
	sortDefinitions(p.pathParams)
	sortDefinitions(p.queryParams)
	sortDefinitions(p.headerParams)
	sortDefinitions(p.cookieParams)
}

// bindDeclaredBody records the handler's own body expectations.
func (p *Plan) bindDeclaredBody(sig Signature) {
	if !p.reservedKeys[KeyData] {
		return
	}

	p.encoding = EncodingJSON
	if sig.Body != nil && sig.Body.Encoding != "" {
		p.encoding = sig.Body.Encoding
	}
	if sig.Body != nil {
		p.dataOptional = sig.Body.Optional
	}
	if param, ok := sig.param(KeyData); ok && param.Optional {
		p.dataOptional = true
	}
}

// mergeSubPlan folds one dependency's compiled expectations into the plan,
// checking body-encoding compatibility across branches.
func (p *Plan) mergeSubPlan(sub *Plan) error {
	p.pathParams = MergeParameterSets(p.pathParams, sub.pathParams)
	p.queryParams = MergeParameterSets(p.queryParams, sub.queryParams)
	p.headerParams = MergeParameterSets(p.headerParams, sub.headerParams)
	p.cookieParams = MergeParameterSets(p.cookieParams, sub.cookieParams)

	if p.reservedKeys[KeyData] && sub.reservedKeys[KeyData] {
		if p.encoding.isForm() != sub.encoding.isForm() {
			return &BodyConflictError{Local: p.encoding, Dependency: sub.encoding}
		}
		if p.encoding.isForm() && p.encoding != sub.encoding {
			return &FormEncodingConflictError{Local: p.encoding, Dependency: sub.encoding}
		}
	} else if sub.reservedKeys[KeyData] {
		// Only the dependency consumes the body: adopt its expectations.
		p.encoding = sub.encoding
		p.dataOptional = sub.dataOptional
	}

	for key := range sub.reservedKeys {
		p.reservedKeys[key] = true
	}
	for name := range sub.sequenceQueryNames {
		p.sequenceQueryNames[name] = true
	}

	return nil
}

// bindCodec selects the decoder the data extractor will call. Form
// encodings parse on the connection and need no codec.
func (p *Plan) bindCodec(codecs *CodecRegistry) error {
	if !p.reservedKeys[KeyData] || p.encoding.isForm() {
		return nil
	}

	codec, ok := codecs.Get(p.encoding)
	if !ok {
		return &UnsupportedEncodingError{Encoding: p.encoding}
	}
	p.codec = codec
	return nil
}

// Extract runs the plan's extractors in their fixed order against one
// connection, writing into the request-local values map.
func (p *Plan) Extract(values *Values, conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	for _, extract := range p.extractors {
		if err := extract(values, conn); err != nil {
			return err
		}
	}
	return nil
}

// HasArgs reports whether the handler or its dependency chain expects any
// input at all.
func (p *Plan) HasArgs() bool { return p.hasArgs }

// Encoding returns the body encoding the plan decodes, or "" when no branch
// consumes the body.
func (p *Plan) Encoding() Encoding { return p.encoding }

// DataOptional reports whether an empty body yields nil instead of failing.
func (p *Plan) DataOptional() bool { return p.dataOptional }

// PathParams returns the compiled path parameter definitions.
func (p *Plan) PathParams() []ParameterDefinition { return copyDefs(p.pathParams) }

// QueryParams returns the compiled query parameter definitions.
func (p *Plan) QueryParams() []ParameterDefinition { return copyDefs(p.queryParams) }

// HeaderParams returns the compiled header parameter definitions.
func (p *Plan) HeaderParams() []ParameterDefinition { return copyDefs(p.headerParams) }

// CookieParams returns the compiled cookie parameter definitions.
func (p *Plan) CookieParams() []ParameterDefinition { return copyDefs(p.cookieParams) }

// ReservedKeys returns the reserved context keys the plan extracts, sorted.
func (p *Plan) ReservedKeys() []string {
	keys := make([]string, 0, len(p.reservedKeys))
	for key := range p.reservedKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SequenceQueryNames returns the query aliases whose values stay lists,
// sorted.
func (p *Plan) SequenceQueryNames() []string {
	names := make([]string, 0, len(p.sequenceQueryNames))
	for name := range p.sequenceQueryNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DependencyBatches returns the batch schedule as provider keys, for
// introspection.
func (p *Plan) DependencyBatches() [][]string {
	out := make([][]string, len(p.batches))
	for i, batch := range p.batches {
		keys := make([]string, len(batch))
		for j, node := range batch {
			keys[j] = node.Key
		}
		out[i] = keys
	}
	return out
}

func copyDefs(defs []ParameterDefinition) []ParameterDefinition {
	out := make([]ParameterDefinition, len(defs))
	copy(out, defs)
	return out
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := keys[:0]
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}

func mergeSets(sets ...map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for _, set := range sets {
		for key := range set {
			out[key] = true
		}
	}
	return out
}

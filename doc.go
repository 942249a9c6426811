// Package reqwire precomputes, at route-registration time, exactly which
// inputs a request handler and its dependency providers need from an
// incoming connection, and extracts and resolves those inputs at request
// time.
//
// The package is organized around a single immutable artifact, the Plan:
//
//	registry := reqwire.NewRegistry()
//	registry.Provide("db", openDatabase)
//	registry.Provide("repo", newRepository, reqwire.WithParams(
//		reqwire.Param{Name: "db"},
//	))
//
//	plan, err := reqwire.Compile(reqwire.CompileOptions{
//		Signature: reqwire.Signature{Params: []reqwire.Param{
//			{Name: "id"},
//			{Name: "repo"},
//			{Name: "token", Header: "X-API-Token"},
//		}},
//		Providers:  registry,
//		PathParams: []string{"id"},
//	})
//
// Compile validates the configuration (ambiguous keys, reserved keywords,
// conflicting body encodings, dependency cycles) and fails fast; a compiled
// Plan never produces configuration errors at request time. The Plan is pure
// data plus closures over compiled sets and is safe to share across
// concurrently handled requests.
//
// At request time:
//
//	conn := reqwire.NewConnection(r, reqwire.WithPathParams(params))
//	values := reqwire.NewValues()
//	if err := plan.Extract(values, conn); err != nil { ... }
//
//	cleanup, err := plan.ResolveDependencies(ctx, values)
//	defer cleanup.Close(ctx)
//
// Independent dependencies within a batch resolve concurrently; dependent
// ones resolve in deterministic batch order. Scoped resources returned by
// providers are released by the CleanupGroup on every exit path.
//
// Turning the extracted raw values into typed, validated handler arguments
// is deliberately out of scope: the values map is handed off to a
// validation/coercion layer together with the handler's declared types.
package reqwire

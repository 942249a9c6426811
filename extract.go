package reqwire

import (
	"context"
	"sync"
)

// extractor copies one slice of connection data into the request-local
// values map. Extractors are assembled once at compile time and run
// sequentially per request.
type extractor func(values *Values, conn *Connection) error

// buildExtractors assembles the plan's extractor chain: reserved context
// keys first, then the aliased parameter sets grouped by source. The order
// is fixed so repeated compilation of the same inputs yields the same plan.
func (p *Plan) buildExtractors() []extractor {
	var extractors []extractor

	if p.reservedKeys[KeyData] {
		extractors = append(extractors, p.dataExtractor())
	}
	if p.reservedKeys[KeyState] {
		extractors = append(extractors, extractState)
	}
	if p.reservedKeys[KeyScope] {
		extractors = append(extractors, extractScope)
	}
	if p.reservedKeys[KeyRequest] {
		extractors = append(extractors, extractRequest)
	}
	if p.reservedKeys[KeySocket] {
		extractors = append(extractors, extractSocket)
	}
	if p.reservedKeys[KeyHeaders] {
		extractors = append(extractors, extractHeaders)
	}
	if p.reservedKeys[KeyCookies] {
		extractors = append(extractors, extractCookies)
	}
	if p.reservedKeys[KeyQuery] {
		extractors = append(extractors, extractQuery)
	}

	if len(p.headerParams) > 0 {
		extractors = append(extractors, extractHeaderParams(p.headerParams))
	}
	if len(p.pathParams) > 0 {
		extractors = append(extractors, extractPathParams(p.pathParams))
	}
	if len(p.cookieParams) > 0 {
		extractors = append(extractors, extractCookieParams(p.cookieParams))
	}
	if len(p.queryParams) > 0 {
		extractors = append(extractors, extractQueryParams(p.queryParams))
	}

	return extractors
}

func extractState(values *Values, conn *Connection) error {
	values.Set(KeyState, conn.State())
	return nil
}

// extractScope exposes the raw transport request for handlers that need to
// drop below the framework surface.
func extractScope(values *Values, conn *Connection) error {
	values.Set(KeyScope, conn.Request())
	return nil
}

func extractRequest(values *Values, conn *Connection) error {
	values.Set(KeyRequest, conn)
	return nil
}

func extractSocket(values *Values, conn *Connection) error {
	values.Set(KeySocket, conn)
	return nil
}

func extractHeaders(values *Values, conn *Connection) error {
	values.Set(KeyHeaders, conn.Headers())
	return nil
}

func extractCookies(values *Values, conn *Connection) error {
	values.Set(KeyCookies, conn.Cookies())
	return nil
}

func extractQuery(values *Values, conn *Connection) error {
	values.Set(KeyQuery, conn.QueryValues())
	return nil
}

func extractHeaderParams(defs []ParameterDefinition) extractor {
	return func(values *Values, conn *Connection) error {
		for _, def := range defs {
			vals := conn.HeaderValues(def.FieldAlias)
			if len(vals) == 0 {
				if err := applyDefault(values, conn, def); err != nil {
					return err
				}
				continue
			}
			if def.Sequence {
				values.Set(def.FieldName, vals)
			} else {
				values.Set(def.FieldName, vals[0])
			}
		}
		return nil
	}
}

func extractPathParams(defs []ParameterDefinition) extractor {
	return func(values *Values, conn *Connection) error {
		for _, def := range defs {
			val, ok := conn.PathParam(def.FieldAlias)
			if !ok {
				if err := applyDefault(values, conn, def); err != nil {
					return err
				}
				continue
			}
			values.Set(def.FieldName, val)
		}
		return nil
	}
}

func extractCookieParams(defs []ParameterDefinition) extractor {
	return func(values *Values, conn *Connection) error {
		cookies := conn.Cookies()
		for _, def := range defs {
			val, ok := cookies[def.FieldAlias]
			if !ok {
				if err := applyDefault(values, conn, def); err != nil {
					return err
				}
				continue
			}
			values.Set(def.FieldName, val)
		}
		return nil
	}
}

// extractQueryParams pulls aliased query parameters. Sequence parameters
// keep the full value list even when a single value arrived; scalar
// parameters take the first value.
func extractQueryParams(defs []ParameterDefinition) extractor {
	return func(values *Values, conn *Connection) error {
		query := conn.QueryValues()
		for _, def := range defs {
			vals, ok := query[def.FieldAlias]
			if !ok || len(vals) == 0 {
				if err := applyDefault(values, conn, def); err != nil {
					return err
				}
				continue
			}
			if def.Sequence {
				values.Set(def.FieldName, vals)
			} else {
				values.Set(def.FieldName, vals[0])
			}
		}
		return nil
	}
}

// applyDefault handles an absent parameter: required parameters fail with
// the source alias and request URL, optional ones fall back to the declared
// default.
func applyDefault(values *Values, conn *Connection, def ParameterDefinition) error {
	if def.Required {
		return &MissingParameterError{Param: def.FieldAlias, URL: conn.URL()}
	}
	if def.Default != nil {
		values.Set(def.FieldName, def.Default)
	}
	return nil
}

// BodyFuture defers body reading and decoding until a consumer actually
// awaits it. The extraction phase stores one under "data" without touching
// the request body; decoding happens at most once.
type BodyFuture struct {
	once  sync.Once
	fetch func(ctx context.Context) (any, error)
	value any
	err   error
}

// Await decodes the body on first call and returns the cached result on
// subsequent calls.
func (f *BodyFuture) Await(ctx context.Context) (any, error) {
	f.once.Do(func() {
		f.value, f.err = f.fetch(ctx)
	})
	return f.value, f.err
}

// dataExtractor stores a deferred body decode under the "data" key. Form
// encodings parse through the connection's cached form parser; structured
// encodings decode the raw body with the bound codec.
func (p *Plan) dataExtractor() extractor {
	encoding := p.encoding
	codec := p.codec
	optional := p.dataOptional

	return func(values *Values, conn *Connection) error {
		fetch := func(ctx context.Context) (any, error) {
			if encoding.isForm() {
				form, err := conn.Form(encoding)
				if err != nil {
					return nil, &BodyDecodeError{Encoding: encoding, Cause: err}
				}
				if optional && len(form) == 0 {
					return nil, nil
				}
				return form, nil
			}

			body, err := conn.Body()
			if err != nil {
				return nil, &BodyDecodeError{Encoding: encoding, Cause: err}
			}
			if len(body) == 0 {
				if optional {
					return nil, nil
				}
				return nil, &BodyDecodeError{Encoding: encoding, Cause: ErrNoData}
			}

			var decoded any
			if err := codec.Decode(body, &decoded); err != nil {
				return nil, &BodyDecodeError{Encoding: encoding, Cause: err}
			}
			return decoded, nil
		}

		values.Set(KeyData, &BodyFuture{fetch: fetch})
		return nil
	}
}

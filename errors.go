package reqwire

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/reqwire/reqwire/internal/graph"
)

// Sentinel errors. These are wrapped in typed errors where more context is
// available; never compare provider failures against these directly.
var (
	ErrNilProviderFunc = errors.New("provider function cannot be nil")
	ErrEmptyKey        = errors.New("provider key cannot be empty")
	ErrNilConnection   = errors.New("connection cannot be nil")
	ErrNoData          = errors.New("no body value was extracted for this request")
)

var (
	_ error = (*AmbiguousKeyError)(nil)
	_ error = (*ReservedKeyError)(nil)
	_ error = (*AlreadyRegisteredError)(nil)
	_ error = (*BodyConflictError)(nil)
	_ error = (*FormEncodingConflictError)(nil)
	_ error = (*UnsupportedEncodingError)(nil)
	_ error = (*MissingParameterError)(nil)
	_ error = (*BodyDecodeError)(nil)
	_ error = (*ProviderError)(nil)
)

// Type aliases for graph package errors, so callers can match them without
// importing internal packages.
type (
	CircularDependencyError = graph.CircularDependencyError
	MissingProviderError    = graph.MissingProviderError
)

// ========================================
// Configuration errors
// ========================================
// Raised only during route registration / plan compilation. A route whose
// plan fails to compile must not be served.

// AmbiguousKeyError reports argument keys declared in more than one place:
// a path parameter colliding with a dependency key, or either colliding
// with an aliased query/header/cookie parameter name.
type AmbiguousKeyError struct {
	Keys []string
}

func (e *AmbiguousKeyError) Error() string {
	keys := sortedCopy(e.Keys)
	return fmt.Sprintf(
		"ambiguous argument keys: %s. Use distinct keys for dependencies, path parameters and aliased parameters",
		strings.Join(keys, ", "),
	)
}

// ReservedKeyError reports path parameters, dependency keys or aliased
// parameter names that collide with a reserved context keyword.
type ReservedKeyError struct {
	Keys []string
}

func (e *ReservedKeyError) Error() string {
	keys := sortedCopy(e.Keys)
	return fmt.Sprintf(
		"reserved keywords (%s) cannot be used for dependencies or parameters; used: %s",
		strings.Join(reservedKeyList(), ", "), strings.Join(keys, ", "),
	)
}

// AlreadyRegisteredError reports a duplicate provider key.
type AlreadyRegisteredError struct {
	Key string
}

func (e *AlreadyRegisteredError) Error() string {
	return fmt.Sprintf("provider %q already registered", e.Key)
}

// BodyConflictError reports two dependency branches that disagree on the
// body kind: one expects a structured (JSON/MessagePack) body, the other
// expects form data.
type BodyConflictError struct {
	Local      Encoding
	Dependency Encoding
}

func (e *BodyConflictError) Error() string {
	return fmt.Sprintf(
		"dependencies have incompatible 'data' expectations: one expects %s and the other expects %s",
		e.Local, e.Dependency,
	)
}

// FormEncodingConflictError reports two dependency branches that both expect
// form data but with different sub-encodings.
type FormEncodingConflictError struct {
	Local      Encoding
	Dependency Encoding
}

func (e *FormEncodingConflictError) Error() string {
	return fmt.Sprintf(
		"dependencies have incompatible form-data encoding: one expects %s and the other expects %s",
		e.Local, e.Dependency,
	)
}

// UnsupportedEncodingError reports a declared body encoding with no codec
// registered for it.
type UnsupportedEncodingError struct {
	Encoding Encoding
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("no codec registered for body encoding %q", e.Encoding)
}

// ========================================
// Request errors
// ========================================
// Surfaced per request; they never affect other concurrent requests.

// MissingParameterError reports a required path/query/header/cookie value
// absent from the request.
type MissingParameterError struct {
	Param string
	URL   string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required parameter %q for url %s", e.Param, e.URL)
}

// BodyDecodeError wraps a failure decoding the request body.
type BodyDecodeError struct {
	Encoding Encoding
	Cause    error
}

func (e *BodyDecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s request body: %v", e.Encoding, e.Cause)
}

func (e *BodyDecodeError) Unwrap() error {
	return e.Cause
}

// ProviderError wraps a failure raised by a provider during dependency
// resolution. The failure aborts the whole resolution; cleanup handles
// registered before it are still released by the caller.
type ProviderError struct {
	Key   string
	Cause error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q failed: %v", e.Key, e.Cause)
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func sortedCopy(keys []string) []string {
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}

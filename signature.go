package reqwire

import (
	"fmt"
	"reflect"
	"strings"
)

// Reserved context keywords. Arguments carrying these names have special
// extraction behavior and cannot be used for dependencies or parameters.
const (
	KeyData    = "data"
	KeyState   = "state"
	KeyScope   = "scope"
	KeyRequest = "request"
	KeySocket  = "socket"
	KeyHeaders = "headers"
	KeyCookies = "cookies"
	KeyQuery   = "query"
)

var reservedKeys = map[string]bool{
	KeyData:    true,
	KeyState:   true,
	KeyScope:   true,
	KeyRequest: true,
	KeySocket:  true,
	KeyHeaders: true,
	KeyCookies: true,
	KeyQuery:   true,
}

func reservedKeyList() []string {
	return []string{KeyData, KeyState, KeyScope, KeyRequest, KeySocket, KeyHeaders, KeyCookies, KeyQuery}
}

// BodySpec declares the expected body encoding for the "data" argument.
type BodySpec struct {
	Encoding Encoding

	// Optional makes an empty body yield nil instead of failing.
	Optional bool
}

// Signature describes the declared arguments of a handler or provider. It is
// built once, at route-registration time; nothing inspects signatures per
// request.
type Signature struct {
	Params []Param

	// Body is consulted only when a "data" argument is declared. A nil
	// Body means the default structured encoding (JSON).
	Body *BodySpec
}

// ParamNames returns the declared argument names in declaration order.
func (s Signature) ParamNames() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

func (s Signature) param(name string) (Param, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

func (s Signature) declares(name string) bool {
	_, ok := s.param(name)
	return ok
}

// SignatureOf derives a Signature from a tagged struct type, the one-time
// reflection step that replaces per-request signature inspection. Supported
// tags:
//
//	Limit  int      `query:"limit" default:"10"`
//	Token  string   `header:"X-API-Token"`
//	Theme  string   `cookie:"theme" optional:"true"`
//	IDs    []string `query:"ids"`
//
// Field names are lowercased to form the argument name unless a name tag is
// present. Slice-typed fields become sequence parameters. Defaults stay raw
// strings; typing them is the coercion layer's job.
func SignatureOf(v any) (Signature, error) {
	t := reflect.TypeOf(v)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Signature{}, fmt.Errorf("expected a struct type, got %T", v)
	}

	var sig Signature
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}

		name := strings.ToLower(field.Name)
		if tag, ok := field.Tag.Lookup("name"); ok && tag != "" {
			name = tag
		}

		param := Param{
			Name:     name,
			Query:    field.Tag.Get("query"),
			Header:   field.Tag.Get("header"),
			Cookie:   field.Tag.Get("cookie"),
			Optional: field.Tag.Get("optional") == "true",
			Sequence: field.Type.Kind() == reflect.Slice,
		}
		if def, ok := field.Tag.Lookup("default"); ok {
			param.Default = def
		}

		sig.Params = append(sig.Params, param)
	}

	return sig, nil
}

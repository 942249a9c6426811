package reqwire

import (
	"fmt"
	"reflect"
	"sort"
)

// SourceKind identifies where a parameter value is extracted from.
type SourceKind uint8

const (
	SourcePath SourceKind = iota
	SourceQuery
	SourceHeader
	SourceCookie
)

func (k SourceKind) String() string {
	switch k {
	case SourcePath:
		return "path"
	case SourceQuery:
		return "query"
	case SourceHeader:
		return "header"
	case SourceCookie:
		return "cookie"
	default:
		return fmt.Sprintf("SourceKind(%d)", uint8(k))
	}
}

// Param is a declared handler or provider argument. At most one of Query,
// Header and Cookie should be set; a Param with none of them is a query
// parameter aliased by its own name, unless its name matches a path
// parameter or a registered provider key, or is a reserved keyword.
type Param struct {
	// Name is the destination argument name.
	Name string

	// Query, Header and Cookie carry an explicit wire-name alias.
	Query  string
	Header string
	Cookie string

	// Default is substituted when the value is absent from the request.
	// Raw extracted values are strings, so defaults normally are too.
	Default any

	// Optional marks the argument as not required even without a default.
	Optional bool

	// Sequence preserves multiple occurrences as a []string, even when
	// the request carries a single occurrence.
	Sequence bool
}

// ParameterDefinition is the immutable compiled form of a Param. The source
// kind is derived once during compilation and never changes. Two definitions
// are considered mergeable by (FieldAlias, Source).
type ParameterDefinition struct {
	FieldName  string
	FieldAlias string
	Source     SourceKind
	Required   bool
	Default    any
	Sequence   bool
}

// newParameterDefinition classifies a declared argument into exactly one
// definition. Precedence: path parameter match, explicit header alias,
// explicit cookie alias, query parameter.
func newParameterDefinition(p Param, pathParams map[string]bool) ParameterDefinition {
	alias := p.Name
	if p.Query != "" {
		alias = p.Query
	}
	source := SourceQuery

	switch {
	case pathParams[p.Name]:
		alias = p.Name
		source = SourcePath
	case p.Header != "":
		alias = p.Header
		source = SourceHeader
	case p.Cookie != "":
		alias = p.Cookie
		source = SourceCookie
	}

	return ParameterDefinition{
		FieldName:  p.Name,
		FieldAlias: alias,
		Source:     source,
		Required:   !p.Optional && p.Default == nil,
		Default:    p.Default,
		Sequence:   p.Sequence,
	}
}

// hasAlias reports whether the param carries an explicit wire-name alias.
func (p Param) hasAlias() bool {
	return p.Query != "" || p.Header != "" || p.Cookie != ""
}

// MergeParameterSets merges two parameter-definition sets coming from
// different layers of the dependency chain into one.
//
// The result starts from the intersection of the two sets. An entry from the
// symmetric difference is kept if it is required, or if no other entry in the
// difference shares its alias and is required: a parameter may be optional in
// one branch and required in another, and the merged requirement must be the
// stricter one.
func MergeParameterSets(first, second []ParameterDefinition) []ParameterDefinition {
	result := make([]ParameterDefinition, 0, len(first))
	for _, def := range first {
		if containsDefinition(second, def) {
			result = append(result, def)
		}
	}

	var difference []ParameterDefinition
	for _, def := range first {
		if !containsDefinition(second, def) {
			difference = append(difference, def)
		}
	}
	for _, def := range second {
		if !containsDefinition(first, def) {
			difference = append(difference, def)
		}
	}

	for _, def := range difference {
		if def.Required || !anyRequiredWithAlias(difference, def.FieldAlias) {
			result = append(result, def)
		}
	}

	sortDefinitions(result)
	return result
}

func containsDefinition(defs []ParameterDefinition, def ParameterDefinition) bool {
	for _, d := range defs {
		if definitionsEqual(d, def) {
			return true
		}
	}
	return false
}

// definitionsEqual compares whole definitions. Default may hold slices, so
// plain struct comparison is not enough.
func definitionsEqual(a, b ParameterDefinition) bool {
	return a.FieldName == b.FieldName &&
		a.FieldAlias == b.FieldAlias &&
		a.Source == b.Source &&
		a.Required == b.Required &&
		a.Sequence == b.Sequence &&
		reflect.DeepEqual(a.Default, b.Default)
}

func anyRequiredWithAlias(defs []ParameterDefinition, alias string) bool {
	for _, d := range defs {
		if d.FieldAlias == alias && d.Required {
			return true
		}
	}
	return false
}

// sortDefinitions orders definitions deterministically so that compiling the
// same inputs twice yields identical plans.
func sortDefinitions(defs []ParameterDefinition) {
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].Source != defs[j].Source {
			return defs[i].Source < defs[j].Source
		}
		if defs[i].FieldAlias != defs[j].FieldAlias {
			return defs[i].FieldAlias < defs[j].FieldAlias
		}
		return defs[i].FieldName < defs[j].FieldName
	})
}

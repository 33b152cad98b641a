package schema

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// typeRef is an __Type value: either a named definition, or a LIST or
// NON_NULL wrapper around ofType.
type typeRef struct {
	def    *ast.Definition
	kind   string
	ofType *typeRef
}

// inputValue is an __Type value's argument or input field.
type inputValue struct {
	name         string
	description  string
	typ          *ast.Type
	defaultValue *ast.Value
	directives   ast.DirectiveList
}

func (ex *execution) typeOf(t *ast.Type) *typeRef {
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return &typeRef{kind: "NON_NULL", ofType: ex.typeOf(&inner)}
	}
	if t.Elem != nil {
		return &typeRef{kind: "LIST", ofType: ex.typeOf(t.Elem)}
	}
	return definitionRef(ex.schema.Types[t.NamedType])
}

func definitionRef(def *ast.Definition) *typeRef {
	if def == nil {
		return nil
	}
	return &typeRef{def: def, kind: string(def.Kind)}
}

// resolveMeta answers the fields of the introspection types.
func (ex *execution) resolveMeta(typeName string, source any, f *ast.Field) (any, error) {
	includeDeprecated, _ := f.ArgumentMap(ex.vars)["includeDeprecated"].(bool)

	switch typeName {
	case "__Schema":
		switch f.Name {
		case "description":
			return nil, nil
		case "types":
			names := slices.Sorted(maps.Keys(ex.schema.Types))
			out := make([]any, 0, len(names))
			for _, name := range names {
				out = append(out, definitionRef(ex.schema.Types[name]))
			}
			return out, nil
		case "queryType":
			return refOrNil(definitionRef(ex.schema.Query)), nil
		case "mutationType":
			return refOrNil(definitionRef(ex.schema.Mutation)), nil
		case "subscriptionType":
			return refOrNil(definitionRef(ex.schema.Subscription)), nil
		case "directives":
			names := slices.Sorted(maps.Keys(ex.schema.Directives))
			out := make([]any, 0, len(names))
			for _, name := range names {
				out = append(out, ex.schema.Directives[name])
			}
			return out, nil
		}

	case "__Type":
		r, ok := source.(*typeRef)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for __Type", source)
		}
		return ex.resolveType(r, f.Name, includeDeprecated)

	case "__Field":
		fd, ok := source.(*ast.FieldDefinition)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for __Field", source)
		}
		switch f.Name {
		case "name":
			return fd.Name, nil
		case "description":
			return nilIfEmpty(fd.Description), nil
		case "args":
			return argumentValues(fd.Arguments, includeDeprecated), nil
		case "type":
			return refOrNil(ex.typeOf(fd.Type)), nil
		case "isDeprecated":
			deprecated, _ := deprecation(fd.Directives)
			return deprecated, nil
		case "deprecationReason":
			_, reason := deprecation(fd.Directives)
			return reason, nil
		}

	case "__InputValue":
		iv, ok := source.(inputValue)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for __InputValue", source)
		}
		switch f.Name {
		case "name":
			return iv.name, nil
		case "description":
			return nilIfEmpty(iv.description), nil
		case "type":
			return refOrNil(ex.typeOf(iv.typ)), nil
		case "defaultValue":
			if iv.defaultValue == nil {
				return nil, nil
			}
			return iv.defaultValue.String(), nil
		case "isDeprecated":
			deprecated, _ := deprecation(iv.directives)
			return deprecated, nil
		case "deprecationReason":
			_, reason := deprecation(iv.directives)
			return reason, nil
		}

	case "__EnumValue":
		ev, ok := source.(*ast.EnumValueDefinition)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for __EnumValue", source)
		}
		switch f.Name {
		case "name":
			return ev.Name, nil
		case "description":
			return nilIfEmpty(ev.Description), nil
		case "isDeprecated":
			deprecated, _ := deprecation(ev.Directives)
			return deprecated, nil
		case "deprecationReason":
			_, reason := deprecation(ev.Directives)
			return reason, nil
		}

	case "__Directive":
		dd, ok := source.(*ast.DirectiveDefinition)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for __Directive", source)
		}
		switch f.Name {
		case "name":
			return dd.Name, nil
		case "description":
			return nilIfEmpty(dd.Description), nil
		case "locations":
			out := make([]any, 0, len(dd.Locations))
			for _, loc := range dd.Locations {
				out = append(out, string(loc))
			}
			return out, nil
		case "args":
			return argumentValues(dd.Arguments, includeDeprecated), nil
		case "isRepeatable":
			return dd.IsRepeatable, nil
		}
	}
	return nil, fmt.Errorf("no resolver for %s.%s", typeName, f.Name)
}

func (ex *execution) resolveType(r *typeRef, field string, includeDeprecated bool) (any, error) {
	def := r.def
	hasFields := def != nil && (def.Kind == ast.Object || def.Kind == ast.Interface)

	switch field {
	case "kind":
		return r.kind, nil
	case "name":
		if def == nil {
			return nil, nil
		}
		return def.Name, nil
	case "description":
		if def == nil {
			return nil, nil
		}
		return nilIfEmpty(def.Description), nil
	case "specifiedByURL":
		if def == nil {
			return nil, nil
		}
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
				return arg.Value.Raw, nil
			}
		}
		return nil, nil
	case "fields":
		if !hasFields {
			return nil, nil
		}
		out := make([]any, 0, len(def.Fields))
		for _, fd := range def.Fields {
			if strings.HasPrefix(fd.Name, "__") {
				continue
			}
			if deprecated, _ := deprecation(fd.Directives); deprecated && !includeDeprecated {
				continue
			}
			out = append(out, fd)
		}
		return out, nil
	case "interfaces":
		if !hasFields {
			return nil, nil
		}
		out := make([]any, 0, len(def.Interfaces))
		for _, name := range def.Interfaces {
			if ref := definitionRef(ex.schema.Types[name]); ref != nil {
				out = append(out, ref)
			}
		}
		return out, nil
	case "possibleTypes":
		if def == nil || (def.Kind != ast.Interface && def.Kind != ast.Union) {
			return nil, nil
		}
		possible := ex.schema.GetPossibleTypes(def)
		out := make([]any, 0, len(possible))
		for _, p := range possible {
			out = append(out, definitionRef(p))
		}
		return out, nil
	case "enumValues":
		if def == nil || def.Kind != ast.Enum {
			return nil, nil
		}
		out := make([]any, 0, len(def.EnumValues))
		for _, ev := range def.EnumValues {
			if deprecated, _ := deprecation(ev.Directives); deprecated && !includeDeprecated {
				continue
			}
			out = append(out, ev)
		}
		return out, nil
	case "inputFields":
		if def == nil || def.Kind != ast.InputObject {
			return nil, nil
		}
		out := make([]any, 0, len(def.Fields))
		for _, fd := range def.Fields {
			out = append(out, inputValue{
				name:         fd.Name,
				description:  fd.Description,
				typ:          fd.Type,
				defaultValue: fd.DefaultValue,
				directives:   fd.Directives,
			})
		}
		return out, nil
	case "ofType":
		return refOrNil(r.ofType), nil
	case "isOneOf":
		if def == nil || def.Kind != ast.InputObject {
			return nil, nil
		}
		return def.Directives.ForName("oneOf") != nil, nil
	}
	return nil, fmt.Errorf("no resolver for __Type.%s", field)
}

func argumentValues(args ast.ArgumentDefinitionList, includeDeprecated bool) []any {
	out := make([]any, 0, len(args))
	for _, a := range args {
		if deprecated, _ := deprecation(a.Directives); deprecated && !includeDeprecated {
			continue
		}
		out = append(out, inputValue{
			name:         a.Name,
			description:  a.Description,
			typ:          a.Type,
			defaultValue: a.DefaultValue,
			directives:   a.Directives,
		})
	}
	return out
}

// deprecation reports whether @deprecated is present and its reason.
func deprecation(directives ast.DirectiveList) (bool, any) {
	d := directives.ForName("deprecated")
	if d == nil {
		return false, nil
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return true, arg.Value.Raw
	}
	return true, "No longer supported"
}

// refOrNil keeps a nil *typeRef from becoming a non-nil interface value.
func refOrNil(r *typeRef) any {
	if r == nil {
		return nil
	}
	return r
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gqlparser "github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/jamesprial/gqlfetch/internal/graphql"
)

// Params is a decoded GraphQL request.
type Params struct {
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
	OperationName string         `json:"operationName,omitempty"`
}

// Response is a GraphQL response. Data is omitted when the request failed
// before execution started, and is the JSON literal null when execution
// nulled the root.
type Response struct {
	Data   json.RawMessage        `json:"data,omitempty"`
	Errors []graphql.GraphQLError `json:"errors,omitempty"`
}

// OperationType reports which operation kind a response came from. It is
// empty when the request never reached execution.
type OperationType string

// Executor validates and executes queries against SDL using a Resolver.
type Executor struct {
	schema   *ast.Schema
	resolver Resolver
}

// NewExecutor loads SDL and returns an Executor that resolves fields with r.
func NewExecutor(r Resolver) (*Executor, error) {
	s, err := gqlparser.LoadSchema(&ast.Source{Name: "users.graphql", Input: SDL})
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return &Executor{schema: s, resolver: r}, nil
}

// Execute runs p and returns the response along with the kind of operation
// that was executed.
func (e *Executor) Execute(ctx context.Context, p Params) (*Response, OperationType) {
	doc, errs := gqlparser.LoadQuery(e.schema, p.Query)
	if len(errs) > 0 {
		return &Response{Errors: convertList(errs)}, ""
	}

	op, err := selectOperation(doc, p.OperationName)
	if err != nil {
		return &Response{Errors: []graphql.GraphQLError{{Message: err.Error()}}}, ""
	}
	if op.Operation != ast.Query {
		return &Response{Errors: []graphql.GraphQLError{{
			Message: fmt.Sprintf("%s operations are not supported", op.Operation),
		}}}, OperationType(op.Operation)
	}

	vars, verr := validator.VariableValues(e.schema, op, p.Variables)
	if verr != nil {
		return &Response{Errors: []graphql.GraphQLError{convertError(verr)}}, OperationType(op.Operation)
	}

	ex := &execution{ctx: ctx, schema: e.schema, resolver: e.resolver, doc: doc, vars: vars}
	root, ok := ex.executeSelectionSet(op.SelectionSet, "Query", nil, nil)

	var data []byte
	if ok {
		data, err = json.Marshal(root)
		if err != nil {
			ex.errors = append(ex.errors, graphql.GraphQLError{Message: fmt.Sprintf("encode data: %v", err)})
			data = []byte("null")
		}
	} else {
		data = []byte("null")
	}

	return &Response{Data: data, Errors: ex.errors}, OperationType(op.Operation)
}

func selectOperation(doc *ast.QueryDocument, name string) (*ast.OperationDefinition, error) {
	if name == "" {
		switch len(doc.Operations) {
		case 0:
			return nil, errors.New("document contains no operation")
		case 1:
			return doc.Operations[0], nil
		default:
			return nil, errors.New("operationName is required when the document has multiple operations")
		}
	}
	op := doc.Operations.ForName(name)
	if op == nil {
		return nil, fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

// execution carries the state of one query run.
type execution struct {
	ctx      context.Context
	schema   *ast.Schema
	resolver Resolver
	doc      *ast.QueryDocument
	vars     map[string]any
	errors   []graphql.GraphQLError
}

// fieldGroup is the set of fields sharing one response key.
type fieldGroup struct {
	key    string
	fields []*ast.Field
}

// executeSelectionSet returns false when a non-null field failed and the
// null must propagate to the parent.
func (ex *execution) executeSelectionSet(set ast.SelectionSet, typeName string, source any, path []any) (object, bool) {
	groups := ex.collectFields(set, typeName, nil, map[string]bool{})
	out := make(object, 0, len(groups))
	for _, g := range groups {
		value, ok := ex.executeField(typeName, source, g.fields, appendPath(path, g.key))
		if !ok {
			return nil, false
		}
		out = append(out, member{key: g.key, value: value})
	}
	return out, true
}

func (ex *execution) collectFields(set ast.SelectionSet, typeName string, groups []*fieldGroup, visited map[string]bool) []*fieldGroup {
	for _, sel := range set {
		switch s := sel.(type) {
		case *ast.Field:
			if !ex.included(s.Directives) {
				continue
			}
			key := s.Alias
			if key == "" {
				key = s.Name
			}
			groups = addToGroup(groups, key, s)
		case *ast.InlineFragment:
			if !ex.included(s.Directives) {
				continue
			}
			if s.TypeCondition != "" && s.TypeCondition != typeName {
				continue
			}
			groups = ex.collectFields(s.SelectionSet, typeName, groups, visited)
		case *ast.FragmentSpread:
			if !ex.included(s.Directives) || visited[s.Name] {
				continue
			}
			visited[s.Name] = true
			frag := ex.doc.Fragments.ForName(s.Name)
			if frag == nil || frag.TypeCondition != typeName {
				continue
			}
			groups = ex.collectFields(frag.SelectionSet, typeName, groups, visited)
		}
	}
	return groups
}

func addToGroup(groups []*fieldGroup, key string, f *ast.Field) []*fieldGroup {
	for _, g := range groups {
		if g.key == key {
			g.fields = append(g.fields, f)
			return groups
		}
	}
	return append(groups, &fieldGroup{key: key, fields: []*ast.Field{f}})
}

// included evaluates @skip and @include.
func (ex *execution) included(directives ast.DirectiveList) bool {
	if d := directives.ForName("skip"); d != nil {
		if skip, _ := d.ArgumentMap(ex.vars)["if"].(bool); skip {
			return false
		}
	}
	if d := directives.ForName("include"); d != nil {
		if include, _ := d.ArgumentMap(ex.vars)["if"].(bool); !include {
			return false
		}
	}
	return true
}

func (ex *execution) executeField(typeName string, source any, fields []*ast.Field, path []any) (any, bool) {
	f := fields[0]
	if f.Name == "__typename" {
		return typeName, true
	}
	if f.Definition == nil {
		ex.addError(fmt.Errorf("unknown field %s.%s", typeName, f.Name), f, path)
		return nil, true
	}
	if err := ex.ctx.Err(); err != nil {
		ex.addError(err, f, path)
		return nil, !f.Definition.Type.NonNull
	}

	resolved, err := ex.resolve(typeName, source, f)
	if err != nil {
		ex.addError(err, f, path)
		return nil, !f.Definition.Type.NonNull
	}
	return ex.completeValue(f.Definition.Type, fields, resolved, path)
}

func (ex *execution) completeValue(t *ast.Type, fields []*ast.Field, value any, path []any) (any, bool) {
	if value == nil {
		if t.NonNull {
			ex.addError(fmt.Errorf("cannot return null for non-nullable field %s", fields[0].Name), fields[0], path)
			return nil, false
		}
		return nil, true
	}

	if t.Elem != nil {
		items, ok := value.([]any)
		if !ok {
			ex.addError(fmt.Errorf("expected a list for field %s", fields[0].Name), fields[0], path)
			return nil, !t.NonNull
		}
		out := make([]any, 0, len(items))
		for i, item := range items {
			v, ok := ex.completeValue(t.Elem, fields, item, appendPath(path, i))
			if !ok {
				return nil, !t.NonNull
			}
			out = append(out, v)
		}
		return out, true
	}

	if def := ex.schema.Types[t.NamedType]; def != nil && def.Kind == ast.Object {
		var sub ast.SelectionSet
		for _, f := range fields {
			sub = append(sub, f.SelectionSet...)
		}
		obj, ok := ex.executeSelectionSet(sub, t.NamedType, value, path)
		if !ok {
			return nil, !t.NonNull
		}
		return obj, true
	}

	return value, true
}

func (ex *execution) resolve(typeName string, source any, f *ast.Field) (any, error) {
	switch typeName {
	case "Query":
		switch f.Name {
		case "users":
			users, err := ex.resolver.Users(ex.ctx)
			if err != nil {
				return nil, err
			}
			return toList(users), nil
		case "request":
			url, _ := f.ArgumentMap(ex.vars)["url"].(string)
			body, err := ex.resolver.Request(ex.ctx, url)
			if err != nil {
				return nil, err
			}
			return body, nil
		case "__schema":
			return ex.schema, nil
		case "__type":
			name, _ := f.ArgumentMap(ex.vars)["name"].(string)
			return refOrNil(definitionRef(ex.schema.Types[name])), nil
		}
	case "User":
		u, ok := source.(User)
		if !ok {
			return nil, fmt.Errorf("unexpected source %T for User", source)
		}
		switch f.Name {
		case "id":
			return u.ID, nil
		case "kind":
			return string(u.Kind), nil
		case "name":
			return u.Name, nil
		case "friends":
			friends, err := ex.resolver.Friends(ex.ctx, u)
			if err != nil {
				return nil, err
			}
			return toList(friends), nil
		}
	default:
		if strings.HasPrefix(typeName, "__") {
			return ex.resolveMeta(typeName, source, f)
		}
	}
	return nil, fmt.Errorf("no resolver for %s.%s", typeName, f.Name)
}

func (ex *execution) addError(err error, f *ast.Field, path []any) {
	ge := graphql.GraphQLError{Message: err.Error(), Path: path}
	if f.Position != nil {
		ge.Locations = []graphql.Location{{Line: f.Position.Line, Column: f.Position.Column}}
	}
	ex.errors = append(ex.errors, ge)
}

func toList(users []User) []any {
	out := make([]any, len(users))
	for i, u := range users {
		out[i] = u
	}
	return out
}

func appendPath(path []any, el any) []any {
	p := make([]any, len(path)+1)
	copy(p, path)
	p[len(path)] = el
	return p
}

func convertList(list gqlerror.List) []graphql.GraphQLError {
	out := make([]graphql.GraphQLError, 0, len(list))
	for _, e := range list {
		out = append(out, convertError(e))
	}
	return out
}

func convertError(err error) graphql.GraphQLError {
	var gqlErr *gqlerror.Error
	if !errors.As(err, &gqlErr) {
		return graphql.GraphQLError{Message: err.Error()}
	}
	ge := graphql.GraphQLError{Message: gqlErr.Message}
	for _, loc := range gqlErr.Locations {
		ge.Locations = append(ge.Locations, graphql.Location{Line: loc.Line, Column: loc.Column})
	}
	for _, el := range gqlErr.Path {
		switch v := el.(type) {
		case ast.PathIndex:
			ge.Path = append(ge.Path, int(v))
		case ast.PathName:
			ge.Path = append(ge.Path, string(v))
		}
	}
	return ge
}

// object is a JSON object that keeps selection order.
type object []member

type member struct {
	key   string
	value any
}

func (o object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

package graphql

import (
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// ValidateQuery checks that query is syntactically valid GraphQL and
// contains at least one operation. It does not check the query against any
// schema.
func ValidateQuery(query string) error {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: query})
	if err != nil {
		return fmt.Errorf("graphql: invalid query: %w", err)
	}
	if len(doc.Operations) == 0 {
		return fmt.Errorf("graphql: invalid query: no operation defined")
	}
	return nil
}

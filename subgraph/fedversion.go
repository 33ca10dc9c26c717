package subgraph

import (
	"fmt"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// IsFedTwo reports whether sdl's document contains an `@link` directive on
// a schema definition or schema extension (spec.md §3: "is_fed_two is true
// iff the SDL's document contains a @link directive on a schema / schema
// extension definition"). Adapted from the directive-walking shape in
// federation/graph/subgraph_v2.go, retargeted from @key entity extraction
// to this single predicate.
func IsFedTwo(sdl string) (bool, error) {
	l := lexer.New(sdl)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return false, fmt.Errorf("parse error: %v", p.Errors())
	}

	for _, def := range doc.Definitions {
		var directives []*ast.Directive
		switch typed := def.(type) {
		case *ast.SchemaDefinition:
			directives = typed.Directives
		case *ast.SchemaExtension:
			directives = typed.Directives
		default:
			continue
		}
		if hasLinkDirective(directives) {
			return true, nil
		}
	}
	return false, nil
}

func hasLinkDirective(directives []*ast.Directive) bool {
	for _, d := range directives {
		if d.Name == "link" {
			return true
		}
	}
	return false
}

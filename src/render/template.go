package render

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/seuros/reactive-sql-bridge/src/binding"
)

// Template is the reference Query type: raw SQL text carrying ":name"
// placeholders, plus the values for each name. It exists purely to give
// tests and the CLI something concrete to render; a real integration would
// pass its own query builder's AST as the opaque render.Query instead.
type Template struct {
	Text   string
	Params map[string]any
	// Types optionally declares the Kind of each named parameter, used to
	// pick a BindNull kind when a value is nil. Untyped names default to
	// KindUnknown.
	Types map[string]binding.Kind
}

var templateLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Param", Pattern: `:[a-zA-Z_][a-zA-Z0-9_]*`},
	{Name: "Text", Pattern: `[^:]+`},
	{Name: "Colon", Pattern: `:`},
})

type templatePart struct {
	Param *string `@Param`
	Text  *string `| @Text`
	Colon *string `| @Colon`
}

type templateAST struct {
	Parts []*templatePart `@@*`
}

var templateParser = participle.MustBuild[templateAST](
	participle.Lexer(templateLexer),
)

// NamedParamRenderer resolves ":name" placeholders in a Template against
// its Params map, in the order each name is first encountered, rewriting
// them to the marker cfg.Dialect expects (spec 6: "Named-parameter prefix
// defaults to $ and is overridden for dialect families that require a
// different marker").
type NamedParamRenderer struct{}

func (NamedParamRenderer) Render(cfg Config, q Query) (Rendered, error) {
	tmpl, ok := q.(*Template)
	if !ok {
		return Rendered{}, fmt.Errorf("render: NamedParamRenderer only accepts *render.Template, got %T", q)
	}

	ast, err := templateParser.ParseString("", tmpl.Text)
	if err != nil {
		return Rendered{}, fmt.Errorf("render: %w", err)
	}

	var out strings.Builder
	var binds []binding.Param
	seen := make(map[string]int) // name -> 1-based position already assigned

	for _, part := range ast.Parts {
		switch {
		case part.Param != nil:
			name := strings.TrimPrefix(*part.Param, ":")
			pos, ok := seen[name]
			if !ok {
				value, present := tmpl.Params[name]
				if !present {
					return Rendered{}, fmt.Errorf("render: no value supplied for parameter %q", name)
				}
				binds = append(binds, binding.Param{
					Name:  name,
					Type:  tmpl.Types[name],
					Value: value,
				})
				pos = len(binds)
				seen[name] = pos
			}
			if cfg.InlineLiterals {
				out.WriteString(Literal(binds[pos-1].Value))
			} else {
				out.WriteString(marker(cfg, pos))
			}
		case part.Text != nil:
			out.WriteString(*part.Text)
		case part.Colon != nil:
			out.WriteString(*part.Colon)
		}
	}

	return Rendered{SQL: out.String(), BindValues: binds}, nil
}

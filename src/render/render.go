// Package render declares the SQL-renderer-facing interface the core
// depends on (spec section 6, "Renderer-facing") and ships one reference
// implementation used by tests and the CLI. Building an actual SQL query
// builder/optimizer is a Non-goal of this module (SPEC_FULL.md §1); the
// reference renderer here only resolves named placeholders, it does not
// understand SQL grammar.
package render

import (
	"strconv"

	"github.com/seuros/reactive-sql-bridge/src/binding"
)

// Config carries the dialect settings a renderer needs: the named
// parameter marker and the positional bind-marker style. Defaults to "$"
// per spec section 6, overridden per dialect family.
type Config struct {
	NamedParameterPrefix string
	Dialect               Dialect

	// InlineLiterals, when true, makes the reference renderer write each
	// bind value as a SQL literal (via Literal) instead of a positional
	// marker. Used for the multi-statement batch path, which has no bind
	// phase (spec 4.6).
	InlineLiterals bool
}

// Dialect controls how a renderer turns a named placeholder into the
// marker the driver expects on the wire.
type Dialect int

const (
	// DialectPositionalDollar renders "$1", "$2", ... (PostgreSQL family).
	DialectPositionalDollar Dialect = iota
	// DialectQuestionMark renders "?" for every placeholder (MySQL/H2 family).
	DialectQuestionMark
	// DialectAtP renders "@p1", "@p2", ... (SQL Server family).
	DialectAtP
	// DialectColonIndex renders ":1", ":2", ... (Oracle family).
	DialectColonIndex
)

// DefaultConfig returns the PostgreSQL-family default described in spec
// section 6.
func DefaultConfig() Config {
	return Config{NamedParameterPrefix: "$", Dialect: DialectPositionalDollar}
}

// Rendered is the {sql, bindValues} pair spec section 6 says a renderer
// returns, plus a skip-update-counts flag. NamedParamRenderer never sets
// SkipUpdateCounts and nothing in this module reads it.
type Rendered struct {
	SQL              string
	BindValues       []binding.Param
	SkipUpdateCounts bool
}

// Query is opaque to the core: it is whatever AST type the caller's query
// builder produces. The reference Renderer in this package accepts a
// *Template; a production renderer would accept the real query builder's
// AST type instead.
type Query any

// Renderer turns a Query into {sql, bindValues}, per spec section 6.
type Renderer interface {
	Render(cfg Config, q Query) (Rendered, error)
}

func marker(cfg Config, position int) string {
	switch cfg.Dialect {
	case DialectQuestionMark:
		return "?"
	case DialectAtP:
		return "@p" + strconv.Itoa(position)
	case DialectColonIndex:
		return ":" + strconv.Itoa(position)
	default:
		return cfg.NamedParameterPrefix + strconv.Itoa(position)
	}
}

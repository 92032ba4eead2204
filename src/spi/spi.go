// Package spi declares the capability set a reactive database driver must
// provide for src/reactivesql to drive it. It is the "driver-facing"
// surface of spec section 6: implementing an actual driver against this
// interface is explicitly out of scope for this module (see Non-goals in
// SPEC_FULL.md) — src/spitest ships a minimal in-memory implementation
// used only to exercise and test the core.
package spi

import "github.com/seuros/reactive-sql-bridge/src/reactivesql/rs"

// Nullability mirrors the driver's three-valued column nullability.
type Nullability int

const (
	NullabilityUnknown Nullability = iota
	NullabilityNonNull
	NullabilityNullable
)

// ColumnType identifies the inferred or native type of a result column or
// bind parameter.
type ColumnType struct {
	// Name is the dialect's native type name when the driver exposes one
	// (e.g. "numeric", "timestamptz"); empty when only a generic Kind is
	// known.
	Name string
	Kind Kind
}

// Kind is a generic, dialect-independent type classification used as a
// fallback when a driver has no native type descriptor, and as the
// parameter type passed to BindNull.
type Kind int

const (
	KindUnknown Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindDate
	KindTime
	KindTimestamp
)

// Row exposes typed, 0-based column access into a single driver row.
// get(index0) / get(index0, type) from spec section 6 are both expressed
// here as Get/GetAs; 1-based-to-0-based translation is the row adapter's
// job (spec 4.2), not the driver's.
type Row interface {
	// Get returns the raw driver value at the given 0-based column index,
	// or nil if the column is SQL NULL.
	Get(index0 int) (any, error)
	// GetAs returns the value coerced to the requested Kind, used for
	// temporal columns where the driver offers a local-date/local-time/
	// local-datetime representation distinct from its default Get value.
	GetAs(index0 int, kind Kind) (any, error)
}

// RowMetadata exposes column-shape information for one Result.
type RowMetadata interface {
	ColumnCount() int
	ColumnName(index0 int) string
	Precision(index0 int) int
	Scale(index0 int) int
	Nullability(index0 int) Nullability
	// NativeType returns the driver's native column-type descriptor and
	// true, or ("", false) when the driver can't supply one (spec 4.2:
	// "on method-missing at runtime... falls back to a derived data-type
	// name").
	NativeType(index0 int) (string, bool)
	ColumnType(index0 int) ColumnType
}

// Result carries either row-count or row-mapping output for one logical
// statement execution (spec glossary: Result). Map's callback returns
// `any` rather than a generic type parameter because Go does not support
// type parameters on interface methods; callers type-assert the result.
type Result interface {
	RowsUpdated() rs.Publisher[int64]
	Map(f func(Row, RowMetadata) (any, error)) rs.Publisher[any]
}

// Statement is a driver-side prepared statement.
type Statement interface {
	// Bind sets parameter index0 (0-based) to value.
	Bind(index0 int, value any) error
	// BindNull marks parameter index0 as SQL NULL of the given kind.
	BindNull(index0 int, kind Kind) error
	// Add accumulates the currently bound parameter set as one batch row
	// (spec 4.6, single-statement batch).
	Add() error
	// FetchSize configures a cursor fetch-size hint; drivers that don't
	// support cursors may ignore it.
	FetchSize(n int) error
	// ReturnGeneratedValues attaches the list of column names to be
	// returned as generated values for dialects without native RETURNING
	// support.
	ReturnGeneratedValues(names ...string) error
	Execute() rs.Publisher[Result]
}

// Batch is a driver-side multi-statement aggregation primitive (spec 4.6).
type Batch interface {
	Add(sql string) error
	Execute() rs.Publisher[Result]
}

// Connection is the single connection emitted by a driver's connection
// factory for the lifetime of one query or batch execution.
type Connection interface {
	CreateStatement(sql string) (Statement, error)
	CreateBatch() (Batch, error)
	// Close returns a fire-and-forget completion publisher, mirroring
	// Publisher<Void> in spec section 6.
	Close() rs.Publisher[struct{}]
}

// ConnectionFactory yields exactly one Connection per subscription, as
// described in spec section 4.5.
type ConnectionFactory interface {
	rs.Publisher[Connection]
}

// Package binding declares the thin capability contract the core uses to
// move values between driver rows/statements and library records. The
// actual type binding registry (dialect-aware conversion rules for every
// SQL type) is an explicit Non-goal of this module; only the interfaces
// the core depends on, plus a handful of built-in scalar bindings used by
// the reference renderer and tests, live here.
package binding

// RowAdapter is the 1-based, temporal-aware row view a Binding reads
// through. src/reactivesql implements this (spec 4.2, "Row adapter");
// binding.Binding never talks to the driver's spi.Row directly.
type RowAdapter interface {
	// Get returns the value of the 1-based column index, performing
	// temporal substitution internally when the column is a date/time
	// type. WasNull reflects this call once it returns.
	Get(index1 int) (any, error)
	// WasNull reports whether the most recent Get call on this adapter
	// returned SQL NULL.
	WasNull() bool
}

// ParamAdapter is the 1-based statement view a Binding writes through.
// src/reactivesql implements this (spec 4.2, "Parameter adapter").
type ParamAdapter interface {
	// Set binds value at the 1-based parameter index, issuing BindNull
	// when value is nil and performing temporal substitution otherwise.
	Set(index1 int, value any) error
}

// GetContext wraps the row adapter and column index a Binding reads from.
type GetContext struct {
	Row    RowAdapter
	Index1 int
}

// SetContext wraps the parameter adapter and index a Binding writes to.
type SetContext struct {
	Params ParamAdapter
	Index1 int
}

// Binding converts between a driver value and a Go field value for one
// column/parameter.
type Binding interface {
	Get(ctx GetContext) (any, error)
	Set(ctx SetContext, value any) error
}

// Field describes one record field: its name and the Binding used to
// populate it.
type Field struct {
	Name    string
	Binding Binding
}

// RecordType is the per-query field list the result subscriber resolves
// once, from the first Result, and reuses for every row of every Result
// (spec 4.3's "caches per statement").
type RecordType struct {
	Fields []Field
}

// Param is a single rendered bind value, as produced by the external SQL
// renderer (spec 6, "Renderer-facing"). Type is used by the parameter
// adapter to pick a BindNull kind when Value is nil.
type Param struct {
	Name  string
	Type  Kind
	Value any
}

// Kind classifies a bind parameter's type when its value is nil and a
// typed BindNull call is required. Mirrors spi.Kind without importing spi,
// to keep this package free of a dependency on the driver-facing layer.
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

// --- built-in scalar bindings -------------------------------------------------

type stringBinding struct{}

func (stringBinding) Get(ctx GetContext) (any, error) {
	v, err := ctx.Row.Get(ctx.Index1)
	if err != nil || v == nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

func (stringBinding) Set(ctx SetContext, value any) error {
	return ctx.Params.Set(ctx.Index1, value)
}

type int64Binding struct{}

func (int64Binding) Get(ctx GetContext) (any, error) {
	v, err := ctx.Row.Get(ctx.Index1)
	if err != nil || v == nil {
		return int64(0), err
	}
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return int64(0), nil
	}
}

func (int64Binding) Set(ctx SetContext, value any) error {
	return ctx.Params.Set(ctx.Index1, value)
}

type float64Binding struct{}

func (float64Binding) Get(ctx GetContext) (any, error) {
	v, err := ctx.Row.Get(ctx.Index1)
	if err != nil || v == nil {
		return float64(0), err
	}
	f, _ := v.(float64)
	return f, nil
}

func (float64Binding) Set(ctx SetContext, value any) error {
	return ctx.Params.Set(ctx.Index1, value)
}

type boolBinding struct{}

func (boolBinding) Get(ctx GetContext) (any, error) {
	v, err := ctx.Row.Get(ctx.Index1)
	if err != nil || v == nil {
		return false, err
	}
	b, _ := v.(bool)
	return b, nil
}

func (boolBinding) Set(ctx SetContext, value any) error {
	return ctx.Params.Set(ctx.Index1, value)
}

type bytesBinding struct{}

func (bytesBinding) Get(ctx GetContext) (any, error) {
	v, err := ctx.Row.Get(ctx.Index1)
	if err != nil || v == nil {
		return []byte(nil), err
	}
	b, _ := v.([]byte)
	return b, nil
}

func (bytesBinding) Set(ctx SetContext, value any) error {
	return ctx.Params.Set(ctx.Index1, value)
}

// temporalBinding exercises the temporal substitution path. The row and
// parameter adapters are responsible for converting to/from the driver's
// LocalDate/LocalTime/LocalDateTime representation; this binding only
// moves whatever they hand back (typically a time.Time) through to the
// record/statement. Date, Time and Timestamp all share it: the conversion
// already branches on Kind inside the adapters, so the binding itself has
// nothing type-specific to do.
type temporalBinding struct{}

func (temporalBinding) Get(ctx GetContext) (any, error) {
	return ctx.Row.Get(ctx.Index1)
}

func (temporalBinding) Set(ctx SetContext, value any) error {
	return ctx.Params.Set(ctx.Index1, value)
}

// String, Int64, Float64, Bool, Bytes, Date, Time and Timestamp are
// ready-to-use Bindings for the corresponding scalar field types.
var (
	String    Binding = stringBinding{}
	Int64     Binding = int64Binding{}
	Float64   Binding = float64Binding{}
	Bool      Binding = boolBinding{}
	Bytes     Binding = bytesBinding{}
	Date      Binding = temporalBinding{}
	Time      Binding = temporalBinding{}
	Timestamp Binding = temporalBinding{}
)

package reactivesql

import (
	"time"

	"github.com/seuros/reactive-sql-bridge/src/binding"
	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// DialectOverride lets a dialect package intercept a single bind call
// before the default bind/bindNull logic runs. It returns handled=true
// when it fully processed the call (err carries any failure); handled=false
// falls through to the default behavior. Spec 4.2/9 describe this as a
// "dialect-switch hook" whose branches are deliberately empty in this
// revision — no dialect shipped here needs one yet.
type DialectOverride func(stmt spi.Statement, index0 int, kind binding.Kind, value any) (handled bool, err error)

// paramAdapter is the stateless shim from the binding layer's 1-based
// ParamAdapter capability to a driver Statement's 0-based bind/bindNull
// calls (spec 4.2, "Parameter adapter").
type paramAdapter struct {
	stmt     spi.Statement
	kinds    []binding.Kind // 0-based, parallel to the rendered bind value list
	override DialectOverride
}

func newParamAdapter(stmt spi.Statement, kinds []binding.Kind, override DialectOverride) *paramAdapter {
	return &paramAdapter{stmt: stmt, kinds: kinds, override: override}
}

func (a *paramAdapter) kindAt(index0 int) binding.Kind {
	if index0 < 0 || index0 >= len(a.kinds) {
		return binding.KindUnknown
	}
	return a.kinds[index0]
}

// Set implements binding.ParamAdapter. index1 is 1-based; it is translated
// to the driver's 0-based convention here.
func (a *paramAdapter) Set(index1 int, value any) error {
	index0 := index1 - 1
	kind := a.kindAt(index0)

	if a.override != nil {
		if handled, err := a.override(a.stmt, index0, kind, value); handled {
			return err
		}
	}

	if value == nil {
		return a.stmt.BindNull(index0, toSpiKind(kind))
	}

	if substituted, ok := substituteTemporal(kind, value); ok {
		value = substituted
	}

	return a.stmt.Bind(index0, value)
}

func toSpiKind(k binding.Kind) spi.Kind {
	switch k {
	case binding.KindBool:
		return spi.KindBool
	case binding.KindInt64:
		return spi.KindInt64
	case binding.KindFloat64:
		return spi.KindFloat64
	case binding.KindString:
		return spi.KindString
	case binding.KindBytes:
		return spi.KindBytes
	case binding.KindDate:
		return spi.KindDate
	case binding.KindTime:
		return spi.KindTime
	case binding.KindTimestamp:
		return spi.KindTimestamp
	default:
		return spi.KindUnknown
	}
}

// substituteTemporal converts a time.Time parameter value into the
// driver's local-date/local-time/local-datetime representation, mirroring
// the row adapter's inverse conversion (spec 4.2).
func substituteTemporal(kind binding.Kind, value any) (any, bool) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, false
	}
	switch kind {
	case binding.KindDate:
		return spi.LocalDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
	case binding.KindTime:
		return spi.LocalTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanos: t.Nanosecond()}, true
	case binding.KindTimestamp:
		return spi.LocalDateTime{
			Date: spi.LocalDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()},
			Time: spi.LocalTime{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second(), Nanos: t.Nanosecond()},
		}, true
	default:
		return nil, false
	}
}

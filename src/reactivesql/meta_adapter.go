package reactivesql

import (
	"reflect"
	"sync"

	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// nativeTypeSupport remembers, per concrete RowMetadata implementation,
// whether NativeType ever returned ok=false. Once a driver has shown it
// can't supply a native type name, every subsequent column on every
// subscription skips the probe and goes straight to the derived kind.
//
// This is the Go shape of spec 4.2's "on method-missing at runtime... the
// adapter... remembers the downgrade in a process-wide flag so subsequent
// calls skip the probe": Go has no method-missing, so the probe itself is
// just calling the interface method, but the process-wide memoization of
// its outcome is exactly what the design note in spec section 9 ("Driver
// version probing") asks for.
var nativeTypeSupport sync.Map // reflect.Type -> bool (true = supported)

func nativeTypeKnownUnsupported(meta spi.RowMetadata) bool {
	t := reflect.TypeOf(meta)
	if v, ok := nativeTypeSupport.Load(t); ok {
		return !v.(bool)
	}
	return false
}

func recordNativeTypeSupport(meta spi.RowMetadata, supported bool) {
	t := reflect.TypeOf(meta)
	if _, loaded := nativeTypeSupport.LoadOrStore(t, supported); loaded && !supported {
		nativeTypeSupport.Store(t, false)
	}
}

// derivedTypeName returns a fallback type name when the driver has no
// native descriptor for a column.
func derivedTypeName(k spi.Kind) string {
	switch k {
	case spi.KindBool:
		return "boolean"
	case spi.KindInt64:
		return "bigint"
	case spi.KindFloat64:
		return "double precision"
	case spi.KindString:
		return "varchar"
	case spi.KindBytes:
		return "bytea"
	case spi.KindDate:
		return "date"
	case spi.KindTime:
		return "time"
	case spi.KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// metaAdapter is the stateless shim over a driver RowMetadata. Nullability
// passes through unchanged: spi.Nullability already uses the library's own
// three-valued convention (spec 4.2).
type metaAdapter struct {
	meta spi.RowMetadata
}

func newMetaAdapter(meta spi.RowMetadata) *metaAdapter {
	return &metaAdapter{meta: meta}
}

func (a *metaAdapter) ColumnCount() int { return a.meta.ColumnCount() }

func (a *metaAdapter) ColumnName(index1 int) string {
	return a.meta.ColumnName(index1 - 1)
}

func (a *metaAdapter) Precision(index1 int) int {
	return a.meta.Precision(index1 - 1)
}

func (a *metaAdapter) Scale(index1 int) int {
	return a.meta.Scale(index1 - 1)
}

func (a *metaAdapter) Nullability(index1 int) spi.Nullability {
	return a.meta.Nullability(index1 - 1)
}

// TypeName returns the driver's native type name when available, falling
// back to a derived name otherwise.
func (a *metaAdapter) TypeName(index1 int) string {
	index0 := index1 - 1
	if !nativeTypeKnownUnsupported(a.meta) {
		if name, ok := a.meta.NativeType(index0); ok {
			recordNativeTypeSupport(a.meta, true)
			return name
		}
		recordNativeTypeSupport(a.meta, false)
	}
	return derivedTypeName(a.meta.ColumnType(index0).Kind)
}

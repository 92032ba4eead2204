package reactivesql

import (
	"time"

	"github.com/seuros/reactive-sql-bridge/src/spi"
)

// isTemporal reports which spi.Kind values the row adapter must fetch
// through Row.GetAs instead of Row.Get, because the driver hands back a
// local-date/local-time/local-datetime value rather than the library's own
// temporal classes (spec 4.2).
func isTemporal(k spi.Kind) bool {
	switch k {
	case spi.KindDate, spi.KindTime, spi.KindTimestamp:
		return true
	default:
		return false
	}
}

// rowAdapter is the stateless (save for wasNull) shim between a driver Row
// and the binding layer's RowAdapter capability. One is created per row.
type rowAdapter struct {
	row     spi.Row
	meta    spi.RowMetadata
	wasNull bool
}

func newRowAdapter(row spi.Row, meta spi.RowMetadata) *rowAdapter {
	return &rowAdapter{row: row, meta: meta}
}

// Get implements binding.RowAdapter. index1 is 1-based per spec 4.2; it is
// translated to the driver's 0-based convention here, once, at the
// boundary.
func (a *rowAdapter) Get(index1 int) (any, error) {
	index0 := index1 - 1

	kind := a.meta.ColumnType(index0).Kind
	var value any
	var err error
	if isTemporal(kind) {
		value, err = a.row.GetAs(index0, kind)
	} else {
		value, err = a.row.Get(index0)
	}
	if err != nil {
		a.wasNull = false
		return nil, err
	}
	a.wasNull = value == nil
	if !a.wasNull && isTemporal(kind) {
		value = toTime(value)
	}
	return value, nil
}

// toTime converts the driver's timezone-less local-date/local-time/local-
// datetime representation into time.Time, the inverse of
// substituteTemporal in param_adapter.go. A value that isn't one of those
// three shapes (the driver already handed back a time.Time, or GetAs
// returned something unexpected) passes through unchanged.
func toTime(value any) any {
	switch v := value.(type) {
	case spi.LocalDate:
		return time.Date(v.Year, time.Month(v.Month), v.Day, 0, 0, 0, 0, time.UTC)
	case spi.LocalTime:
		return time.Date(0, time.January, 1, v.Hour, v.Minute, v.Second, v.Nanos, time.UTC)
	case spi.LocalDateTime:
		d, tm := v.Date, v.Time
		return time.Date(d.Year, time.Month(d.Month), d.Day, tm.Hour, tm.Minute, tm.Second, tm.Nanos, time.UTC)
	default:
		return value
	}
}

// WasNull reflects only the most recent Get call on this adapter, per the
// invariant in spec section 3.
func (a *rowAdapter) WasNull() bool {
	return a.wasNull
}
